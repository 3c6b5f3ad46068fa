package hotstore

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cdrflow/cdrflow/internal/schema"
)

type fakeExecer struct {
	sqls []string
	args [][]any
	err  error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func sampleRecord() *schema.EnrichedRecord {
	return &schema.EnrichedRecord{
		UnifiedRecord: schema.UnifiedRecord{
			CDRID:                  "018f2c3a-0000-4000-8000-000000000001",
			IMSI:                   "208150123456789",
			MSISDN:                 "+33612345678",
			EventType:              schema.EventVoice,
			ServiceType:            schema.ServiceStandard,
			StartTimestamp:         time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC),
			DurationSeconds:        schema.Ptr[int64](185),
			CountryCode:            "FR",
			MCC:                    schema.Ptr("208"),
			MNC:                    schema.Ptr("15"),
			CallType:               schema.Ptr(schema.CallMobile),
			IngestionTimestamp:     "2024-01-15T14:00:01Z",
			NormalizationTimestamp: "2024-01-15T14:00:02Z",
			SourceSystem:           "unknown",
			RawDataHash:            "00000000deadbeef",
		},
		FraudInfo: &schema.FraudInfo{
			FraudScore:   0.1,
			RiskLevel:    schema.RiskLow,
			ModelVersion: "fraud_rules_v1",
		},
		EnrichmentTimestamp: "2024-01-15T14:00:03Z",
		EnrichmentVersion:   "v1.0.0",
	}
}

func TestInsert_UpsertSQLAndArgs(t *testing.T) {
	fake := &fakeExecer{}
	repo := &Repository{db: fake, log: zaptest.NewLogger(t)}

	require.NoError(t, repo.Insert(context.Background(), sampleRecord()))
	require.Len(t, fake.sqls, 1)

	sql := fake.sqls[0]
	assert.Contains(t, sql, "INSERT INTO cdr_records")
	assert.Contains(t, sql, "ON CONFLICT (cdr_id) DO UPDATE")
	assert.Equal(t, 50, strings.Count(sql, "$"))
	require.Len(t, fake.args[0], 50)
}

// A redelivery can carry different content than the row it replaces, e.g.
// after re-enrichment. The conflict clause must overwrite every column, not
// just the storage timestamp, so the newest delivery wins.
func TestInsert_ConflictOverwritesEveryColumn(t *testing.T) {
	fake := &fakeExecer{}
	repo := &Repository{db: fake, log: zaptest.NewLogger(t)}

	require.NoError(t, repo.Insert(context.Background(), sampleRecord()))
	sql := fake.sqls[0]

	start := strings.Index(sql, "(")
	end := strings.Index(sql, ") VALUES")
	require.True(t, start >= 0 && end > start)

	for _, col := range strings.Split(sql[start+1:end], ",") {
		col = strings.TrimSpace(col)
		if col == "cdr_id" {
			continue
		}
		assert.Contains(t, sql, fmt.Sprintf("%s = EXCLUDED.%s", col, col), col)
	}
}

func TestInsert_PropagatesError(t *testing.T) {
	fake := &fakeExecer{err: assert.AnError}
	repo := &Repository{db: fake, log: zaptest.NewLogger(t)}

	err := repo.Insert(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestEnsureSchema_AppliesTableAndIndexes(t *testing.T) {
	fake := &fakeExecer{}
	repo := &Repository{db: fake, log: zaptest.NewLogger(t)}

	require.NoError(t, repo.EnsureSchema(context.Background()))
	require.Len(t, fake.sqls, 4)
	assert.Contains(t, fake.sqls[0], "CREATE TABLE IF NOT EXISTS cdr_records")
	assert.Contains(t, fake.sqls[1], "cdr_records_imsi_idx")
	assert.Contains(t, fake.sqls[2], "cdr_records_start_timestamp_idx")
	assert.Contains(t, fake.sqls[3], "cdr_records_risk_level_idx")
}

func TestBuildArgs_TimestampsBecomeEpochMillis(t *testing.T) {
	rec := sampleRecord()
	storedAt := time.Date(2024, 1, 15, 14, 0, 10, 0, time.UTC)

	args := buildArgs(rec, storedAt)
	require.Len(t, args, 50)

	assert.Equal(t, rec.CDRID, args[0])
	assert.Equal(t, rec.StartTimestamp.UnixMilli(), args[7])

	ingested, ok := args[46].(*int64)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 0, 1, 0, time.UTC).UnixMilli(), *ingested)

	assert.Equal(t, storedAt.UnixMilli(), args[49])
}

func TestBuildArgs_NilSidecarsStoreNulls(t *testing.T) {
	rec := sampleRecord()
	rec.FraudInfo = nil
	rec.NetworkInfo = nil
	rec.ClientInfo = nil

	args := buildArgs(rec, time.Now().UTC())
	require.Len(t, args, 50)

	// fraud_score through data_plan_limit_mb are NULL.
	for i := 29; i <= 43; i++ {
		assert.Nil(t, args[i], "arg %d", i)
	}
}

func TestBuildArgs_UnparseableTimestampIsNull(t *testing.T) {
	rec := sampleRecord()
	rec.IngestionTimestamp = "not-a-timestamp"

	args := buildArgs(rec, time.Now().UTC())
	assert.Nil(t, args[46])
}
