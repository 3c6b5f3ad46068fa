package coldstore

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cdrflow/cdrflow/internal/schema"
)

// fileUploader ships one staged file; satisfied by *Uploader.
type fileUploader interface {
	Upload(ctx context.Context, stagingDir, path string) error
}

// Stats is the snapshot exposed on the health endpoint.
type Stats struct {
	PendingRecords  int   `json:"pending_records"`
	RecordsArchived int64 `json:"records_archived"`
	FilesUploaded   int64 `json:"files_uploaded"`
	UploadFailures  int64 `json:"upload_failures"`
}

// Batcher accumulates archive rows keyed by partition and flushes them when
// the batch size or the flush interval is reached. The mutex guards only
// the in-memory map; file writes and uploads happen outside the lock.
type Batcher struct {
	writer    *Writer
	uploader  fileUploader
	batchSize int
	interval  time.Duration
	log       *zap.Logger

	mu      sync.Mutex
	batches map[string][]ArchiveRecord
	pending int

	recordsArchived atomic.Int64
	filesUploaded   atomic.Int64
	uploadFailures  atomic.Int64
}

// NewBatcher builds a Batcher.
func NewBatcher(w *Writer, u fileUploader, batchSize int, interval time.Duration, log *zap.Logger) *Batcher {
	return &Batcher{
		writer:    w,
		uploader:  u,
		batchSize: batchSize,
		interval:  interval,
		log:       log,
		batches:   make(map[string][]ArchiveRecord),
	}
}

// Add projects rec into its partition batch; reaching the batch size
// triggers a synchronous flush.
func (b *Batcher) Add(ctx context.Context, rec *schema.EnrichedRecord) {
	row := FromEnriched(rec)
	key := row.PartitionKey()

	b.mu.Lock()
	b.batches[key] = append(b.batches[key], row)
	b.pending++
	full := b.pending >= b.batchSize
	b.mu.Unlock()

	if full {
		b.Flush(ctx)
	}
}

// Flush swaps the accumulated batches out under the lock and writes and
// uploads each partition concurrently. Rows whose upload fails stay staged
// on disk and are retried by the next interval scan.
func (b *Batcher) Flush(ctx context.Context) {
	b.mu.Lock()
	batches := b.batches
	b.batches = make(map[string][]ArchiveRecord)
	b.pending = 0
	b.mu.Unlock()

	if len(batches) == 0 {
		return
	}

	var wg sync.WaitGroup
	for partition, rows := range batches {
		wg.Add(1)
		go func(partition string, rows []ArchiveRecord) {
			defer wg.Done()
			b.flushPartition(ctx, partition, rows)
		}(partition, rows)
	}
	wg.Wait()
}

func (b *Batcher) flushPartition(ctx context.Context, partition string, rows []ArchiveRecord) {
	path, err := b.writer.WriteBatch(partition, rows)
	if err != nil {
		b.uploadFailures.Add(1)
		b.log.Error("failed to write archive batch",
			zap.String("partition", partition), zap.Error(err))
		return
	}
	b.recordsArchived.Add(int64(len(rows)))

	if err := b.uploader.Upload(ctx, b.writer.StagingDir(), path); err != nil {
		b.uploadFailures.Add(1)
		b.log.Error("upload failed, file retained for retry",
			zap.String("path", path), zap.Error(err))
		return
	}
	b.filesUploaded.Add(1)
}

// Run drives the timed flush and the retained-file retry scan until ctx is
// cancelled.
func (b *Batcher) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Flush(ctx)
			b.retryRetained(ctx)
		}
	}
}

// Drain flushes every partial batch and retries retained files. Callers must
// stop feeding Add first, otherwise records can slip in behind the final
// flush. The batch must survive shutdown, so the drain runs on a fresh
// context.
func (b *Batcher) Drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b.Flush(ctx)
	b.retryRetained(ctx)
	b.log.Info("cold writer drained")
}

// retryRetained re-uploads staged files left behind by earlier failed
// uploads.
func (b *Batcher) retryRetained(ctx context.Context) {
	root := b.writer.StagingDir()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".parquet") {
			return err
		}
		if err := b.uploader.Upload(ctx, root, path); err != nil {
			b.uploadFailures.Add(1)
			b.log.Warn("retry upload failed", zap.String("path", path), zap.Error(err))
			return nil
		}
		b.filesUploaded.Add(1)
		return nil
	})
	if err != nil {
		b.log.Warn("retained-file scan failed", zap.Error(err))
	}
}

// Snapshot returns current archiver statistics.
func (b *Batcher) Snapshot() Stats {
	b.mu.Lock()
	pending := b.pending
	b.mu.Unlock()

	return Stats{
		PendingRecords:  pending,
		RecordsArchived: b.recordsArchived.Load(),
		FilesUploaded:   b.filesUploaded.Load(),
		UploadFailures:  b.uploadFailures.Load(),
	}
}
