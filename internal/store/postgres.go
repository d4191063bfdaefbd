package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-intel/internal/db"
	"github.com/sells-group/competitor-intel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists the hot-path queries prepared on each new
// connection: cache reads and the resolve upsert dominate traffic.
var preparedStatements = map[string]string{
	"resolve_entity": `
		INSERT INTO entities (id, domain_key, display_name, industry, usage_count, data_confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $6, $6)
		ON CONFLICT (domain_key) DO UPDATE SET
			usage_count  = entities.usage_count + 1,
			display_name = CASE WHEN entities.display_name = '' THEN excluded.display_name ELSE entities.display_name END,
			industry     = CASE WHEN entities.industry = '' THEN excluded.industry ELSE entities.industry END,
			updated_at   = excluded.updated_at
		RETURNING id, domain_key, display_name, industry, size_band, business_model,
			usage_count, scan_count, last_scanned_at, data_confidence, created_at, updated_at`,
	"get_fresh_scan": `
		UPDATE scans SET access_count = access_count + 1, last_accessed_at = $1
		WHERE entity_id = $2 AND scan_type = $3 AND is_current AND NOT is_stale AND expires_at > $1
		RETURNING id, entity_id, scan_type, payload, extracted, quality, sample_size,
			source_url, is_current, is_stale, scanned_at, expires_at, access_count, last_accessed_at`,
	"get_current_scan": `
		SELECT id, entity_id, scan_type, payload, extracted, quality, sample_size,
			source_url, is_current, is_stale, scanned_at, expires_at, access_count, last_accessed_at
		FROM scans WHERE entity_id = $1 AND scan_type = $2 AND is_current`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	domain_key      TEXT NOT NULL UNIQUE,
	display_name    TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	size_band       TEXT NOT NULL DEFAULT '',
	business_model  TEXT NOT NULL DEFAULT '',
	usage_count     INTEGER NOT NULL DEFAULT 1,
	scan_count      INTEGER NOT NULL DEFAULT 0,
	last_scanned_at TIMESTAMPTZ,
	data_confidence DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scans (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity_id        TEXT NOT NULL REFERENCES entities(id),
	scan_type        TEXT NOT NULL,
	payload          BYTEA,
	extracted        JSONB NOT NULL DEFAULT '{}',
	quality          DOUBLE PRECISION NOT NULL DEFAULT 0,
	sample_size      INTEGER NOT NULL DEFAULT 0,
	source_url       TEXT NOT NULL DEFAULT '',
	is_current       BOOLEAN NOT NULL DEFAULT TRUE,
	is_stale         BOOLEAN NOT NULL DEFAULT FALSE,
	scanned_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at       TIMESTAMPTZ NOT NULL,
	access_count     INTEGER NOT NULL DEFAULT 0,
	last_accessed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS tenant_links (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	local_name TEXT NOT NULL DEFAULT '',
	pinned     BOOLEAN NOT NULL DEFAULT FALSE,
	dismissed  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(tenant_id, entity_id)
);

CREATE TABLE IF NOT EXISTS gaps (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	entity_ids JSONB NOT NULL DEFAULT '[]',
	gap_type   TEXT NOT NULL,
	absence    TEXT NOT NULL DEFAULT '',
	demand     TEXT NOT NULL DEFAULT '',
	angle      TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	provenance JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alerts (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id    TEXT NOT NULL,
	entity_id    TEXT NOT NULL,
	gap_id       TEXT NOT NULL DEFAULT '',
	alert_type   TEXT NOT NULL,
	severity     TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	evidence     TEXT NOT NULL DEFAULT '',
	fingerprint  TEXT NOT NULL UNIQUE,
	is_read      BOOLEAN NOT NULL DEFAULT FALSE,
	is_dismissed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tenant_uvp (
	tenant_id  TEXT PRIMARY KEY,
	claims     JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_scans_current ON scans(entity_id, scan_type) WHERE is_current;
CREATE INDEX IF NOT EXISTS idx_scans_key ON scans(entity_id, scan_type, scanned_at);
CREATE INDEX IF NOT EXISTS idx_tenant_links_entity ON tenant_links(entity_id);
CREATE INDEX IF NOT EXISTS idx_gaps_tenant_entity ON gaps(tenant_id, entity_id);
CREATE INDEX IF NOT EXISTS idx_alerts_tenant_entity ON alerts(tenant_id, entity_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ResolveEntity(ctx context.Context, domainKey, displayName, industry string) (*model.Entity, bool, error) {
	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx, preparedStatements["resolve_entity"],
		uuid.New().String(), domainKey, displayName, industry, model.InitialDataConfidence, now)

	e, err := scanEntity(row)
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: resolve entity %s", domainKey)
	}
	return e, e.UsageCount == 1, nil
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, domain_key, display_name, industry, size_band, business_model,
			usage_count, scan_count, last_scanned_at, data_confidence, created_at, updated_at
		FROM entities WHERE id = $1`, id)
	e, err := scanEntity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get entity %s", id)
	}
	return e, nil
}

func (s *PostgresStore) ListTrackedEntities(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT e.id, e.domain_key, e.display_name, e.industry, e.size_band, e.business_model,
			e.usage_count, e.scan_count, e.last_scanned_at, e.data_confidence, e.created_at, e.updated_at
		FROM entities e
		JOIN tenant_links tl ON tl.entity_id = e.id AND NOT tl.dismissed
		ORDER BY e.domain_key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tracked entities")
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan tracked entity")
		}
		entities = append(entities, *e)
	}
	return entities, eris.Wrap(rows.Err(), "postgres: list tracked entities iterate")
}

func (s *PostgresStore) UpdateEntityConfidence(ctx context.Context, id string, confidence float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET data_confidence = $1, updated_at = $2 WHERE id = $3`,
		confidence, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update entity confidence %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("entity not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RecordScan(ctx context.Context, rec *model.ScanRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return eris.New("postgres: record scan: ttl must be positive")
	}

	now := time.Now().UTC()
	rec.ID = uuid.New().String()
	rec.IsCurrent = true
	rec.IsStale = false
	rec.ScannedAt = now
	rec.ExpiresAt = now.Add(ttl)

	extractedJSON, err := json.Marshal(rec.Extracted)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extracted")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: record scan begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE scans SET is_current = FALSE WHERE entity_id = $1 AND scan_type = $2 AND is_current`,
		rec.EntityID, string(rec.ScanType)); err != nil {
		return eris.Wrap(err, "postgres: supersede current scan")
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO scans (id, entity_id, scan_type, payload, extracted, quality, sample_size,
			source_url, is_current, is_stale, scanned_at, expires_at, access_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, FALSE, $9, $10, 0)`,
		rec.ID, rec.EntityID, string(rec.ScanType), rec.Payload, extractedJSON,
		rec.Quality, rec.SampleSize, rec.SourceURL, rec.ScannedAt, rec.ExpiresAt); err != nil {
		return eris.Wrap(err, "postgres: insert scan")
	}

	if _, err := tx.Exec(ctx,
		`UPDATE entities SET scan_count = scan_count + 1, last_scanned_at = $1, updated_at = $1 WHERE id = $2`,
		now, rec.EntityID); err != nil {
		return eris.Wrap(err, "postgres: bump entity scan count")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: record scan commit")
}

func (s *PostgresStore) GetFreshScan(ctx context.Context, entityID string, scanType model.ScanType) (*model.ScanRecord, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_fresh_scan"],
		time.Now().UTC(), entityID, string(scanType))
	rec, err := scanPgScanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get fresh scan %s/%s", entityID, scanType)
	}
	return rec, nil
}

func (s *PostgresStore) GetCurrentScan(ctx context.Context, entityID string, scanType model.ScanType) (*model.ScanRecord, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_current_scan"], entityID, string(scanType))
	rec, err := scanPgScanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get current scan %s/%s", entityID, scanType)
	}
	return rec, nil
}

func (s *PostgresStore) GetPreviousScan(ctx context.Context, entityID string, scanType model.ScanType) (*model.ScanRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, entity_id, scan_type, payload, extracted, quality, sample_size,
			source_url, is_current, is_stale, scanned_at, expires_at, access_count, last_accessed_at
		FROM scans WHERE entity_id = $1 AND scan_type = $2 AND NOT is_current
		ORDER BY scanned_at DESC LIMIT 1`,
		entityID, string(scanType))
	rec, err := scanPgScanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get previous scan %s/%s", entityID, scanType)
	}
	return rec, nil
}

func (s *PostgresStore) MarkScanStale(ctx context.Context, scanID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE scans SET is_stale = TRUE WHERE id = $1`, scanID)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark scan stale %s", scanID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scan not found: %s", scanID)
	}
	return nil
}

func (s *PostgresStore) UpsertTenantLink(ctx context.Context, link *model.TenantLink) (bool, error) {
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_links (id, tenant_id, entity_id, local_name, pinned, dismissed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, entity_id) DO NOTHING`,
		link.ID, link.TenantID, link.EntityID, link.LocalName, link.Pinned, link.Dismissed, link.CreatedAt)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert tenant link %s/%s", link.TenantID, link.EntityID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListTenantsForEntity(ctx context.Context, entityID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id FROM tenant_links WHERE entity_id = $1 AND NOT dismissed ORDER BY tenant_id`,
		entityID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list tenants for entity %s", entityID)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tenant id")
		}
		tenants = append(tenants, id)
	}
	return tenants, eris.Wrap(rows.Err(), "postgres: list tenants iterate")
}

func (s *PostgresStore) DeleteTenantLink(ctx context.Context, tenantID, entityID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: delete tenant link begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, q := range []string{
		`DELETE FROM alerts WHERE tenant_id = $1 AND entity_id = $2`,
		`DELETE FROM gaps WHERE tenant_id = $1 AND entity_id = $2`,
		`DELETE FROM tenant_links WHERE tenant_id = $1 AND entity_id = $2`,
	} {
		if _, err := tx.Exec(ctx, q, tenantID, entityID); err != nil {
			return eris.Wrapf(err, "postgres: delete tenant link %s/%s", tenantID, entityID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: delete tenant link commit")
}

func (s *PostgresStore) SaveGaps(ctx context.Context, tenantID, entityID string, gaps []model.Gap) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: save gaps begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM gaps WHERE tenant_id = $1 AND entity_id = $2`, tenantID, entityID); err != nil {
		return eris.Wrap(err, "postgres: clear gaps")
	}

	for i := range gaps {
		g := &gaps[i]
		if g.ID == "" {
			g.ID = uuid.New().String()
		}
		if g.CreatedAt.IsZero() {
			g.CreatedAt = time.Now().UTC()
		}
		entityIDs, err := json.Marshal(g.EntityIDs)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal gap entity ids")
		}
		provenance, err := json.Marshal(g.Provenance)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal gap provenance")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO gaps (id, tenant_id, entity_id, entity_ids, gap_type, absence, demand, angle, confidence, provenance, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			g.ID, g.TenantID, g.EntityID, entityIDs, string(g.GapType),
			g.Absence, g.Demand, g.Angle, g.Confidence, provenance, g.CreatedAt); err != nil {
			return eris.Wrap(err, "postgres: insert gap")
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: save gaps commit")
}

func (s *PostgresStore) ListGaps(ctx context.Context, tenantID, entityID string) ([]model.Gap, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, entity_id, entity_ids, gap_type, absence, demand, angle, confidence, provenance, created_at
		FROM gaps WHERE tenant_id = $1 AND entity_id = $2
		ORDER BY confidence DESC, created_at`,
		tenantID, entityID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list gaps %s/%s", tenantID, entityID)
	}
	defer rows.Close()

	var gaps []model.Gap
	for rows.Next() {
		var g model.Gap
		var entityIDs, provenance []byte
		if err := rows.Scan(&g.ID, &g.TenantID, &g.EntityID, &entityIDs, &g.GapType,
			&g.Absence, &g.Demand, &g.Angle, &g.Confidence, &provenance, &g.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan gap")
		}
		if err := json.Unmarshal(entityIDs, &g.EntityIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal gap entity ids")
		}
		if err := json.Unmarshal(provenance, &g.Provenance); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal gap provenance")
		}
		gaps = append(gaps, g)
	}
	return gaps, eris.Wrap(rows.Err(), "postgres: list gaps iterate")
}

func (s *PostgresStore) InsertAlerts(ctx context.Context, alerts []model.Alert) (int, error) {
	inserted := 0
	for i := range alerts {
		a := &alerts[i]
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO alerts (id, tenant_id, entity_id, gap_id, alert_type, severity, description, evidence, fingerprint, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (fingerprint) DO NOTHING`,
			a.ID, a.TenantID, a.EntityID, a.GapID, string(a.AlertType), a.Severity,
			a.Description, a.Evidence, a.Fingerprint, a.CreatedAt)
		if err != nil {
			return inserted, eris.Wrap(err, "postgres: insert alert")
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, tenantID, entityID string) ([]model.Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, entity_id, gap_id, alert_type, severity, description, evidence, fingerprint, is_read, is_dismissed, created_at
		FROM alerts WHERE tenant_id = $1 AND entity_id = $2 AND NOT is_dismissed
		ORDER BY created_at DESC`,
		tenantID, entityID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list alerts %s/%s", tenantID, entityID)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.TenantID, &a.EntityID, &a.GapID, &a.AlertType, &a.Severity,
			&a.Description, &a.Evidence, &a.Fingerprint, &a.Read, &a.Dismissed, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alert")
		}
		alerts = append(alerts, a)
	}
	return alerts, eris.Wrap(rows.Err(), "postgres: list alerts iterate")
}

func (s *PostgresStore) MarkAlertRead(ctx context.Context, tenantID, alertID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET is_read = TRUE WHERE id = $1 AND tenant_id = $2`, alertID, tenantID)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark alert read %s", alertID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("alert not found: %s", alertID)
	}
	return nil
}

func (s *PostgresStore) DismissAlert(ctx context.Context, tenantID, alertID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET is_dismissed = TRUE WHERE id = $1 AND tenant_id = $2`, alertID, tenantID)
	if err != nil {
		return eris.Wrapf(err, "postgres: dismiss alert %s", alertID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("alert not found: %s", alertID)
	}
	return nil
}

func (s *PostgresStore) GetUVPClaims(ctx context.Context, tenantID string) ([]string, error) {
	var claimsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT claims FROM tenant_uvp WHERE tenant_id = $1`, tenantID).Scan(&claimsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get uvp claims %s", tenantID)
	}
	var claims []string
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal uvp claims")
	}
	return claims, nil
}

func (s *PostgresStore) SetUVPClaims(ctx context.Context, tenantID string, claims []string) error {
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal uvp claims")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tenant_uvp (tenant_id, claims, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE SET claims = excluded.claims, updated_at = excluded.updated_at`,
		tenantID, claimsJSON, time.Now().UTC())
	return eris.Wrapf(err, "postgres: set uvp claims %s", tenantID)
}

// scanPgScanRecord scans a scan row from pgx, where extracted arrives as
// []byte (JSONB) rather than TEXT.
func scanPgScanRecord(row scannable) (*model.ScanRecord, error) {
	var rec model.ScanRecord
	var scanType string
	var extractedJSON []byte
	var lastAccessed *time.Time
	err := row.Scan(&rec.ID, &rec.EntityID, &scanType, &rec.Payload, &extractedJSON,
		&rec.Quality, &rec.SampleSize, &rec.SourceURL, &rec.IsCurrent, &rec.IsStale,
		&rec.ScannedAt, &rec.ExpiresAt, &rec.AccessCount, &lastAccessed)
	if err != nil {
		return nil, err
	}
	rec.ScanType = model.ScanType(scanType)
	if err := json.Unmarshal(extractedJSON, &rec.Extracted); err != nil {
		return nil, eris.Wrap(err, "unmarshal extracted")
	}
	rec.LastAccessedAt = lastAccessed
	return &rec, nil
}
