package hotstore

// DDL is applied at startup and is idempotent. The table flattens the
// enriched record 1-to-1; RFC-3339 timestamps are stored as epoch
// milliseconds so range scans stay index-only.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS cdr_records (
	cdr_id                  TEXT PRIMARY KEY,
	session_id              TEXT,
	imsi                    TEXT NOT NULL,
	msisdn                  TEXT NOT NULL,
	imei                    TEXT,
	event_type              TEXT NOT NULL,
	service_type            TEXT NOT NULL,
	start_timestamp         BIGINT NOT NULL,
	end_timestamp           BIGINT,
	duration_seconds        BIGINT,
	country_code            TEXT NOT NULL,
	mcc                     TEXT,
	mnc                     TEXT,
	lac                     TEXT,
	cell_id                 TEXT,
	calling_number          TEXT,
	called_number           TEXT,
	call_type               TEXT,
	bytes_uploaded          BIGINT,
	bytes_downloaded        BIGINT,
	apn                     TEXT,
	sms_type                TEXT,
	message_length          BIGINT,
	is_roaming              BOOLEAN NOT NULL DEFAULT FALSE,
	visited_country         TEXT,
	visited_network         TEXT,
	charging_id             TEXT,
	rated_amount            DOUBLE PRECISION,
	currency                TEXT,
	fraud_score             DOUBLE PRECISION,
	risk_level              TEXT,
	fraud_reasons           TEXT[],
	fraud_model_version     TEXT,
	network_name            TEXT,
	network_type            TEXT,
	cell_tower_location     TEXT,
	signal_strength         INTEGER,
	handover_count          INTEGER,
	subscriber_segment      TEXT,
	contract_type           TEXT,
	customer_since          TEXT,
	lifetime_value          DOUBLE PRECISION,
	is_vip                  BOOLEAN,
	data_plan_limit_mb      BIGINT,
	raw_data_hash           TEXT NOT NULL,
	source_system           TEXT NOT NULL,
	ingestion_timestamp     BIGINT,
	normalization_timestamp BIGINT,
	enrichment_timestamp    BIGINT,
	storage_timestamp       BIGINT NOT NULL
)`

var createIndexSQL = []string{
	`CREATE INDEX IF NOT EXISTS cdr_records_imsi_idx ON cdr_records (imsi)`,
	`CREATE INDEX IF NOT EXISTS cdr_records_start_timestamp_idx ON cdr_records (start_timestamp)`,
	`CREATE INDEX IF NOT EXISTS cdr_records_risk_level_idx ON cdr_records (risk_level)`,
}

// Last-writer-wins: a redelivered or re-enriched record replaces every
// column of its previous row.
const insertSQL = `
INSERT INTO cdr_records (
	cdr_id, session_id, imsi, msisdn, imei,
	event_type, service_type,
	start_timestamp, end_timestamp, duration_seconds,
	country_code, mcc, mnc, lac, cell_id,
	calling_number, called_number, call_type,
	bytes_uploaded, bytes_downloaded, apn,
	sms_type, message_length,
	is_roaming, visited_country, visited_network,
	charging_id, rated_amount, currency,
	fraud_score, risk_level, fraud_reasons, fraud_model_version,
	network_name, network_type, cell_tower_location, signal_strength, handover_count,
	subscriber_segment, contract_type, customer_since, lifetime_value, is_vip, data_plan_limit_mb,
	raw_data_hash, source_system,
	ingestion_timestamp, normalization_timestamp, enrichment_timestamp, storage_timestamp
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
	$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
	$21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
	$31, $32, $33, $34, $35, $36, $37, $38, $39, $40,
	$41, $42, $43, $44, $45, $46, $47, $48, $49, $50
)
ON CONFLICT (cdr_id) DO UPDATE SET
	session_id = EXCLUDED.session_id,
	imsi = EXCLUDED.imsi,
	msisdn = EXCLUDED.msisdn,
	imei = EXCLUDED.imei,
	event_type = EXCLUDED.event_type,
	service_type = EXCLUDED.service_type,
	start_timestamp = EXCLUDED.start_timestamp,
	end_timestamp = EXCLUDED.end_timestamp,
	duration_seconds = EXCLUDED.duration_seconds,
	country_code = EXCLUDED.country_code,
	mcc = EXCLUDED.mcc,
	mnc = EXCLUDED.mnc,
	lac = EXCLUDED.lac,
	cell_id = EXCLUDED.cell_id,
	calling_number = EXCLUDED.calling_number,
	called_number = EXCLUDED.called_number,
	call_type = EXCLUDED.call_type,
	bytes_uploaded = EXCLUDED.bytes_uploaded,
	bytes_downloaded = EXCLUDED.bytes_downloaded,
	apn = EXCLUDED.apn,
	sms_type = EXCLUDED.sms_type,
	message_length = EXCLUDED.message_length,
	is_roaming = EXCLUDED.is_roaming,
	visited_country = EXCLUDED.visited_country,
	visited_network = EXCLUDED.visited_network,
	charging_id = EXCLUDED.charging_id,
	rated_amount = EXCLUDED.rated_amount,
	currency = EXCLUDED.currency,
	fraud_score = EXCLUDED.fraud_score,
	risk_level = EXCLUDED.risk_level,
	fraud_reasons = EXCLUDED.fraud_reasons,
	fraud_model_version = EXCLUDED.fraud_model_version,
	network_name = EXCLUDED.network_name,
	network_type = EXCLUDED.network_type,
	cell_tower_location = EXCLUDED.cell_tower_location,
	signal_strength = EXCLUDED.signal_strength,
	handover_count = EXCLUDED.handover_count,
	subscriber_segment = EXCLUDED.subscriber_segment,
	contract_type = EXCLUDED.contract_type,
	customer_since = EXCLUDED.customer_since,
	lifetime_value = EXCLUDED.lifetime_value,
	is_vip = EXCLUDED.is_vip,
	data_plan_limit_mb = EXCLUDED.data_plan_limit_mb,
	raw_data_hash = EXCLUDED.raw_data_hash,
	source_system = EXCLUDED.source_system,
	ingestion_timestamp = EXCLUDED.ingestion_timestamp,
	normalization_timestamp = EXCLUDED.normalization_timestamp,
	enrichment_timestamp = EXCLUDED.enrichment_timestamp,
	storage_timestamp = EXCLUDED.storage_timestamp`
