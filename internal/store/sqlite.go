package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/competitor-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id              TEXT PRIMARY KEY,
	domain_key      TEXT NOT NULL UNIQUE,
	display_name    TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	size_band       TEXT NOT NULL DEFAULT '',
	business_model  TEXT NOT NULL DEFAULT '',
	usage_count     INTEGER NOT NULL DEFAULT 1,
	scan_count      INTEGER NOT NULL DEFAULT 0,
	last_scanned_at DATETIME,
	data_confidence REAL NOT NULL DEFAULT 0.5,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS scans (
	id               TEXT PRIMARY KEY,
	entity_id        TEXT NOT NULL REFERENCES entities(id),
	scan_type        TEXT NOT NULL,
	payload          BLOB,
	extracted        TEXT NOT NULL DEFAULT '{}',
	quality          REAL NOT NULL DEFAULT 0,
	sample_size      INTEGER NOT NULL DEFAULT 0,
	source_url       TEXT NOT NULL DEFAULT '',
	is_current       INTEGER NOT NULL DEFAULT 1,
	is_stale         INTEGER NOT NULL DEFAULT 0,
	scanned_at       DATETIME NOT NULL,
	expires_at       DATETIME NOT NULL,
	access_count     INTEGER NOT NULL DEFAULT 0,
	last_accessed_at DATETIME
);

CREATE TABLE IF NOT EXISTS tenant_links (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	local_name TEXT NOT NULL DEFAULT '',
	pinned     INTEGER NOT NULL DEFAULT 0,
	dismissed  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	UNIQUE(tenant_id, entity_id)
);

CREATE TABLE IF NOT EXISTS gaps (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	entity_ids TEXT NOT NULL DEFAULT '[]',
	gap_type   TEXT NOT NULL,
	absence    TEXT NOT NULL DEFAULT '',
	demand     TEXT NOT NULL DEFAULT '',
	angle      TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	provenance TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	entity_id    TEXT NOT NULL,
	gap_id       TEXT NOT NULL DEFAULT '',
	alert_type   TEXT NOT NULL,
	severity     TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	evidence     TEXT NOT NULL DEFAULT '',
	fingerprint  TEXT NOT NULL UNIQUE,
	is_read      INTEGER NOT NULL DEFAULT 0,
	is_dismissed INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tenant_uvp (
	tenant_id  TEXT PRIMARY KEY,
	claims     TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_scans_current ON scans(entity_id, scan_type) WHERE is_current = 1;
CREATE INDEX IF NOT EXISTS idx_scans_key ON scans(entity_id, scan_type, scanned_at);
CREATE INDEX IF NOT EXISTS idx_tenant_links_entity ON tenant_links(entity_id);
CREATE INDEX IF NOT EXISTS idx_gaps_tenant_entity ON gaps(tenant_id, entity_id);
CREATE INDEX IF NOT EXISTS idx_alerts_tenant_entity ON alerts(tenant_id, entity_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const entityColumns = `id, domain_key, display_name, industry, size_band, business_model,
	usage_count, scan_count, last_scanned_at, data_confidence, created_at, updated_at`

func (s *SQLiteStore) ResolveEntity(ctx context.Context, domainKey, displayName, industry string) (*model.Entity, bool, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO entities (id, domain_key, display_name, industry, usage_count, data_confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(domain_key) DO UPDATE SET
			usage_count  = entities.usage_count + 1,
			display_name = CASE WHEN entities.display_name = '' THEN excluded.display_name ELSE entities.display_name END,
			industry     = CASE WHEN entities.industry = '' THEN excluded.industry ELSE entities.industry END,
			updated_at   = excluded.updated_at
		RETURNING `+entityColumns,
		uuid.New().String(), domainKey, displayName, industry, model.InitialDataConfidence, now, now,
	)

	e, err := scanEntity(row)
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: resolve entity %s", domainKey)
	}
	return e, e.UsageCount == 1, nil
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get entity %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) ListTrackedEntities(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT `+prefixColumns("e", entityColumns)+`
		FROM entities e
		JOIN tenant_links tl ON tl.entity_id = e.id AND tl.dismissed = 0
		ORDER BY e.domain_key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tracked entities")
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tracked entity")
		}
		entities = append(entities, *e)
	}
	return entities, eris.Wrap(rows.Err(), "sqlite: list tracked entities iterate")
}

func (s *SQLiteStore) UpdateEntityConfidence(ctx context.Context, id string, confidence float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET data_confidence = ?, updated_at = ? WHERE id = ?`,
		confidence, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update entity confidence %s", id)
	}
	return checkRowsAffected(res, "entity", id)
}

const scanColumns = `id, entity_id, scan_type, payload, extracted, quality, sample_size,
	source_url, is_current, is_stale, scanned_at, expires_at, access_count, last_accessed_at`

func (s *SQLiteStore) RecordScan(ctx context.Context, rec *model.ScanRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return eris.New("sqlite: record scan: ttl must be positive")
	}

	now := time.Now().UTC()
	rec.ID = uuid.New().String()
	rec.IsCurrent = true
	rec.IsStale = false
	rec.ScannedAt = now
	rec.ExpiresAt = now.Add(ttl)

	extractedJSON, err := json.Marshal(rec.Extracted)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal extracted")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: record scan begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`UPDATE scans SET is_current = 0 WHERE entity_id = ? AND scan_type = ? AND is_current = 1`,
		rec.EntityID, string(rec.ScanType)); err != nil {
		return eris.Wrap(err, "sqlite: supersede current scan")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scans (id, entity_id, scan_type, payload, extracted, quality, sample_size,
			source_url, is_current, is_stale, scanned_at, expires_at, access_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, 0, ?, ?, 0)`,
		rec.ID, rec.EntityID, string(rec.ScanType), rec.Payload, string(extractedJSON),
		rec.Quality, rec.SampleSize, rec.SourceURL, rec.ScannedAt, rec.ExpiresAt); err != nil {
		return eris.Wrap(err, "sqlite: insert scan")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE entities SET scan_count = scan_count + 1, last_scanned_at = ?, updated_at = ? WHERE id = ?`,
		now, now, rec.EntityID); err != nil {
		return eris.Wrap(err, "sqlite: bump entity scan count")
	}

	return eris.Wrap(tx.Commit(), "sqlite: record scan commit")
}

func (s *SQLiteStore) GetFreshScan(ctx context.Context, entityID string, scanType model.ScanType) (*model.ScanRecord, error) {
	now := time.Now().UTC()
	// Hit and access-stat bump in one statement so concurrent readers never
	// lose an increment.
	row := s.db.QueryRowContext(ctx, `
		UPDATE scans SET access_count = access_count + 1, last_accessed_at = ?
		WHERE entity_id = ? AND scan_type = ? AND is_current = 1 AND is_stale = 0 AND expires_at > ?
		RETURNING `+scanColumns,
		now, entityID, string(scanType), now)

	rec, err := scanScanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get fresh scan %s/%s", entityID, scanType)
	}
	return rec, nil
}

func (s *SQLiteStore) GetCurrentScan(ctx context.Context, entityID string, scanType model.ScanType) (*model.ScanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scanColumns+` FROM scans WHERE entity_id = ? AND scan_type = ? AND is_current = 1`,
		entityID, string(scanType))
	rec, err := scanScanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get current scan %s/%s", entityID, scanType)
	}
	return rec, nil
}

func (s *SQLiteStore) GetPreviousScan(ctx context.Context, entityID string, scanType model.ScanType) (*model.ScanRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+scanColumns+` FROM scans
		WHERE entity_id = ? AND scan_type = ? AND is_current = 0
		ORDER BY scanned_at DESC LIMIT 1`,
		entityID, string(scanType))
	rec, err := scanScanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get previous scan %s/%s", entityID, scanType)
	}
	return rec, nil
}

func (s *SQLiteStore) MarkScanStale(ctx context.Context, scanID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE scans SET is_stale = 1 WHERE id = ?`, scanID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark scan stale %s", scanID)
	}
	return checkRowsAffected(res, "scan", scanID)
}

func (s *SQLiteStore) UpsertTenantLink(ctx context.Context, link *model.TenantLink) (bool, error) {
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_links (id, tenant_id, entity_id, local_name, pinned, dismissed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, entity_id) DO NOTHING`,
		link.ID, link.TenantID, link.EntityID, link.LocalName, link.Pinned, link.Dismissed, link.CreatedAt)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: upsert tenant link %s/%s", link.TenantID, link.EntityID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: upsert tenant link rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) ListTenantsForEntity(ctx context.Context, entityID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id FROM tenant_links WHERE entity_id = ? AND dismissed = 0 ORDER BY tenant_id`,
		entityID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list tenants for entity %s", entityID)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tenant id")
		}
		tenants = append(tenants, id)
	}
	return tenants, eris.Wrap(rows.Err(), "sqlite: list tenants iterate")
}

// DeleteTenantLink removes the tenant's link plus its gaps and alerts for the
// entity. The shared entity and scan rows are untouched.
func (s *SQLiteStore) DeleteTenantLink(ctx context.Context, tenantID, entityID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete tenant link begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []string{
		`DELETE FROM alerts WHERE tenant_id = ? AND entity_id = ?`,
		`DELETE FROM gaps WHERE tenant_id = ? AND entity_id = ?`,
		`DELETE FROM tenant_links WHERE tenant_id = ? AND entity_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, tenantID, entityID); err != nil {
			return eris.Wrapf(err, "sqlite: delete tenant link %s/%s", tenantID, entityID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: delete tenant link commit")
}

func (s *SQLiteStore) SaveGaps(ctx context.Context, tenantID, entityID string, gaps []model.Gap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: save gaps begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM gaps WHERE tenant_id = ? AND entity_id = ?`, tenantID, entityID); err != nil {
		return eris.Wrap(err, "sqlite: clear gaps")
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
			return eris.Wrap(err, "sqlite: marshal gap entity ids")
		}
		provenance, err := json.Marshal(g.Provenance)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal gap provenance")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO gaps (id, tenant_id, entity_id, entity_ids, gap_type, absence, demand, angle, confidence, provenance, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID, g.TenantID, g.EntityID, string(entityIDs), string(g.GapType),
			g.Absence, g.Demand, g.Angle, g.Confidence, string(provenance), g.CreatedAt); err != nil {
			return eris.Wrap(err, "sqlite: insert gap")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: save gaps commit")
}

func (s *SQLiteStore) ListGaps(ctx context.Context, tenantID, entityID string) ([]model.Gap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, entity_id, entity_ids, gap_type, absence, demand, angle, confidence, provenance, created_at
		FROM gaps WHERE tenant_id = ? AND entity_id = ?
		ORDER BY confidence DESC, created_at`,
		tenantID, entityID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list gaps %s/%s", tenantID, entityID)
	}
	defer rows.Close()

	var gaps []model.Gap
	for rows.Next() {
		var g model.Gap
		var entityIDs, provenance string
		if err := rows.Scan(&g.ID, &g.TenantID, &g.EntityID, &entityIDs, &g.GapType,
			&g.Absence, &g.Demand, &g.Angle, &g.Confidence, &provenance, &g.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan gap")
		}
		if err := json.Unmarshal([]byte(entityIDs), &g.EntityIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal gap entity ids")
		}
		if err := json.Unmarshal([]byte(provenance), &g.Provenance); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal gap provenance")
		}
		gaps = append(gaps, g)
	}
	return gaps, eris.Wrap(rows.Err(), "sqlite: list gaps iterate")
}

func (s *SQLiteStore) InsertAlerts(ctx context.Context, alerts []model.Alert) (int, error) {
	inserted := 0
	for i := range alerts {
		a := &alerts[i]
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO alerts (id, tenant_id, entity_id, gap_id, alert_type, severity, description, evidence, fingerprint, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(fingerprint) DO NOTHING`,
			a.ID, a.TenantID, a.EntityID, a.GapID, string(a.AlertType), a.Severity,
			a.Description, a.Evidence, a.Fingerprint, a.CreatedAt)
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: insert alert")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: insert alert rows affected")
		}
		inserted += int(n)
	}
	return inserted, nil
}

func (s *SQLiteStore) ListAlerts(ctx context.Context, tenantID, entityID string) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, entity_id, gap_id, alert_type, severity, description, evidence, fingerprint, is_read, is_dismissed, created_at
		FROM alerts WHERE tenant_id = ? AND entity_id = ? AND is_dismissed = 0
		ORDER BY created_at DESC`,
		tenantID, entityID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list alerts %s/%s", tenantID, entityID)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.TenantID, &a.EntityID, &a.GapID, &a.AlertType, &a.Severity,
			&a.Description, &a.Evidence, &a.Fingerprint, &a.Read, &a.Dismissed, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alert")
		}
		alerts = append(alerts, a)
	}
	return alerts, eris.Wrap(rows.Err(), "sqlite: list alerts iterate")
}

func (s *SQLiteStore) MarkAlertRead(ctx context.Context, tenantID, alertID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET is_read = 1 WHERE id = ? AND tenant_id = ?`, alertID, tenantID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark alert read %s", alertID)
	}
	return checkRowsAffected(res, "alert", alertID)
}

func (s *SQLiteStore) DismissAlert(ctx context.Context, tenantID, alertID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET is_dismissed = 1 WHERE id = ? AND tenant_id = ?`, alertID, tenantID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: dismiss alert %s", alertID)
	}
	return checkRowsAffected(res, "alert", alertID)
}

func (s *SQLiteStore) GetUVPClaims(ctx context.Context, tenantID string) ([]string, error) {
	var claimsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT claims FROM tenant_uvp WHERE tenant_id = ?`, tenantID).Scan(&claimsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get uvp claims %s", tenantID)
	}
	var claims []string
	if err := json.Unmarshal([]byte(claimsJSON), &claims); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal uvp claims")
	}
	return claims, nil
}

func (s *SQLiteStore) SetUVPClaims(ctx context.Context, tenantID string, claims []string) error {
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal uvp claims")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenant_uvp (tenant_id, claims, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET claims = excluded.claims, updated_at = excluded.updated_at`,
		tenantID, string(claimsJSON), time.Now().UTC())
	return eris.Wrapf(err, "sqlite: set uvp claims %s", tenantID)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntity(row scannable) (*model.Entity, error) {
	var e model.Entity
	var lastScanned sql.NullTime
	err := row.Scan(&e.ID, &e.DomainKey, &e.DisplayName, &e.Industry, &e.SizeBand, &e.BusinessModel,
		&e.UsageCount, &e.ScanCount, &lastScanned, &e.DataConfidence, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastScanned.Valid {
		t := lastScanned.Time
		e.LastScannedAt = &t
	}
	return &e, nil
}

func scanScanRecord(row scannable) (*model.ScanRecord, error) {
	var rec model.ScanRecord
	var scanType, extractedJSON string
	var lastAccessed sql.NullTime
	err := row.Scan(&rec.ID, &rec.EntityID, &scanType, &rec.Payload, &extractedJSON,
		&rec.Quality, &rec.SampleSize, &rec.SourceURL, &rec.IsCurrent, &rec.IsStale,
		&rec.ScannedAt, &rec.ExpiresAt, &rec.AccessCount, &lastAccessed)
	if err != nil {
		return nil, err
	}
	rec.ScanType = model.ScanType(scanType)
	if err := json.Unmarshal([]byte(extractedJSON), &rec.Extracted); err != nil {
		return nil, eris.Wrap(err, "unmarshal extracted")
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		rec.LastAccessedAt = &t
	}
	return &rec, nil
}

// prefixColumns qualifies each column in a comma-separated list with a table
// alias for use in joins.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
