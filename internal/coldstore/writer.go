package coldstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
)

// Writer renders one batch per partition into a local staging file. Files
// live under stagingDir until the uploader ships and removes them.
type Writer struct {
	stagingDir string
	log        *zap.Logger
}

// NewWriter builds a Writer rooted at stagingDir, creating it if needed.
func NewWriter(stagingDir string, log *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("coldstore: create staging dir: %w", err)
	}
	return &Writer{stagingDir: stagingDir, log: log}, nil
}

// WriteBatch writes rows into a new Snappy-compressed parquet file under
// the partition directory and returns its path. An empty batch writes
// nothing and returns "".
func (w *Writer) WriteBatch(partition string, rows []ArchiveRecord) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}

	dir := filepath.Join(w.stagingDir, filepath.FromSlash(partition))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("coldstore: create partition dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("cdr_%d.parquet", time.Now().UnixMilli()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("coldstore: create file: %w", err)
	}

	pw := parquet.NewGenericWriter[ArchiveRecord](f, parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("coldstore: write rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("coldstore: close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("coldstore: close file: %w", err)
	}

	w.log.Info("wrote archive file",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)
	return path, nil
}

// StagingDir is the root the uploader resolves object keys against.
func (w *Writer) StagingDir() string { return w.stagingDir }
