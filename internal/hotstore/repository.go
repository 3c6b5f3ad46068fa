// Package hotstore persists enriched records into the Postgres row store
// for low-latency lookup by record id, subscriber or risk band.
package hotstore

import (
	"context"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cdrflow/cdrflow/internal/schema"
)

// execer is the slice of pgxpool.Pool the repository needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository owns the connection pool and the upsert path.
type Repository struct {
	pool *pgxpool.Pool
	db   execer
	log  *zap.Logger
}

// NewRepository connects the pool and bootstraps the schema. A connection
// or DDL failure here is fatal to the stage.
func NewRepository(ctx context.Context, url string, log *zap.Logger) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("hotstore: parse PG_URL: %w", err)
	}
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("hotstore: connect: %w", err)
	}

	repo := &Repository{pool: pool, db: pool, log: log}
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// EnsureSchema applies the idempotent DDL.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("hotstore: create table: %w", err)
	}
	for _, stmt := range createIndexSQL {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("hotstore: create index: %w", err)
		}
	}
	r.log.Info("row store schema ready")
	return nil
}

// Insert upserts one enriched record keyed by cdr_id.
func (r *Repository) Insert(ctx context.Context, rec *schema.EnrichedRecord) error {
	args := buildArgs(rec, time.Now().UTC())
	if _, err := r.db.Exec(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("hotstore: insert %s: %w", rec.CDRID, err)
	}
	return nil
}

// Close releases the pool.
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// buildArgs flattens rec into the insert parameter list. Kept pure so the
// column mapping is unit-testable without a database.
func buildArgs(rec *schema.EnrichedRecord, storedAt time.Time) []any {
	args := []any{
		rec.CDRID, rec.SessionID, rec.IMSI, rec.MSISDN, rec.IMEI,
		string(rec.EventType), string(rec.ServiceType),
		rec.StartTimestamp.UnixMilli(), epochMsTime(rec.EndTimestamp), rec.DurationSeconds,
		rec.CountryCode, rec.MCC, rec.MNC, rec.LAC, rec.CellID,
		rec.CallingNumber, rec.CalledNumber, callTypeArg(rec.CallType),
		rec.BytesUploaded, rec.BytesDownloaded, rec.APN,
		smsTypeArg(rec.SMSType), rec.MessageLength,
		rec.IsRoaming, rec.VisitedCountry, rec.VisitedNetwork,
		rec.ChargingID, rec.RatedAmount, rec.Currency,
	}

	if f := rec.FraudInfo; f != nil {
		args = append(args, f.FraudScore, f.RiskLevel, f.Reasons, f.ModelVersion)
	} else {
		args = append(args, nil, nil, nil, nil)
	}

	if n := rec.NetworkInfo; n != nil {
		args = append(args, n.NetworkName, n.NetworkType, n.CellTowerLocation, n.SignalStrength, n.HandoverCount)
	} else {
		args = append(args, nil, nil, nil, nil, nil)
	}

	if c := rec.ClientInfo; c != nil {
		args = append(args, c.SubscriberSegment, c.ContractType, c.CustomerSince, c.LifetimeValue, c.IsVIP, c.DataPlanLimitMB)
	} else {
		args = append(args, nil, nil, nil, nil, nil, nil)
	}

	args = append(args,
		rec.RawDataHash, rec.SourceSystem,
		epochMs(rec.IngestionTimestamp), epochMs(rec.NormalizationTimestamp),
		epochMs(rec.EnrichmentTimestamp), storedAt.UnixMilli(),
	)
	return args
}

// epochMs converts an RFC-3339 string to epoch milliseconds; empty or
// unparseable input stores NULL.
func epochMs(s string) *int64 {
	if s == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return schema.Ptr(ts.UnixMilli())
}

func epochMsTime(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	return schema.Ptr(t.UnixMilli())
}

func callTypeArg(ct *schema.CallType) *string {
	if ct == nil {
		return nil
	}
	return schema.Ptr(string(*ct))
}

func smsTypeArg(st *schema.SMSDirection) *string {
	if st == nil {
		return nil
	}
	return schema.Ptr(string(*st))
}
