package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/docrecon/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS artifacts (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	source_path TEXT NOT NULL,
	sha256      TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS evidence (
	id           TEXT PRIMARY KEY,
	artifact_id  TEXT NOT NULL REFERENCES artifacts(id),
	locator      TEXT NOT NULL,
	content_type TEXT NOT NULL,
	preview      TEXT NOT NULL DEFAULT '',
	full_data    TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS facts (
	id          TEXT PRIMARY KEY,
	artifact_id TEXT NOT NULL REFERENCES artifacts(id),
	report_week TEXT NOT NULL,
	entity      TEXT NOT NULL,
	metrics     TEXT NOT NULL DEFAULT '{}',
	evidence_id TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_evidence_artifact ON evidence(artifact_id);
CREATE INDEX IF NOT EXISTS idx_evidence_content_type ON evidence(content_type);
CREATE INDEX IF NOT EXISTS idx_facts_artifact ON facts(artifact_id);
CREATE INDEX IF NOT EXISTS idx_facts_week_entity ON facts(report_week, entity);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateArtifact(ctx context.Context, art *model.Artifact) error {
	if art.CreatedAt.IsZero() {
		art.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, kind, source_path, sha256, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		art.ID, string(art.Kind), art.SourcePath, art.SHA256, art.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert artifact %s", art.ID)
}

func (s *SQLiteStore) GetArtifact(ctx context.Context, id string) (*model.Artifact, error) {
	var a model.Artifact
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, source_path, sha256, created_at FROM artifacts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Kind, &a.SourcePath, &a.SHA256, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: artifact %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get artifact %s", id)
	}
	return &a, nil
}

func (s *SQLiteStore) AddEvidence(ctx context.Context, ev *model.Evidence) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev.FullData)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal full_data")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evidence (id, artifact_id, locator, content_type, preview, full_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ArtifactID, ev.Locator, string(ev.ContentType), ev.Preview, string(data), ev.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert evidence for artifact %s", ev.ArtifactID)
	}
	return ev.ID, nil
}

func (s *SQLiteStore) AddFact(ctx context.Context, f *model.Fact) (string, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(f.Metrics)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal metrics")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO facts (id, artifact_id, report_week, entity, metrics, evidence_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ArtifactID, f.ReportWeek, f.Entity, string(data), nullString(f.EvidenceID), f.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert fact for artifact %s", f.ArtifactID)
	}
	return f.ID, nil
}

// AddFacts inserts facts in a single transaction.
func (s *SQLiteStore) AddFacts(ctx context.Context, facts []model.Fact) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin facts tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO facts (id, artifact_id, report_week, entity, metrics, evidence_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare facts insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	ids := make([]string, 0, len(facts))
	for i := range facts {
		f := &facts[i]
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		data, err := json.Marshal(f.Metrics)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal metrics")
		}
		if _, err := stmt.ExecContext(ctx, f.ID, f.ArtifactID, f.ReportWeek, f.Entity, string(data), nullString(f.EvidenceID), f.CreatedAt); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert fact %d for artifact %s", i, f.ArtifactID)
		}
		ids = append(ids, f.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit facts")
	}
	return ids, nil
}

func (s *SQLiteStore) ListEvidence(ctx context.Context, filter EvidenceFilter) ([]model.Evidence, error) {
	query := `SELECT id, artifact_id, locator, content_type, preview, full_data, created_at FROM evidence WHERE 1=1`
	var args []any

	if filter.ArtifactID != "" {
		query += ` AND artifact_id = ?`
		args = append(args, filter.ArtifactID)
	}
	if filter.ContentType != "" {
		query += ` AND content_type = ?`
		args = append(args, string(filter.ContentType))
	}
	query += ` ORDER BY created_at, rowid LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evidence")
	}
	defer rows.Close()

	var out []model.Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list evidence iterate")
}

func (s *SQLiteStore) ListFacts(ctx context.Context, filter FactFilter) ([]model.Fact, error) {
	query := `SELECT id, artifact_id, report_week, entity, metrics, evidence_id, created_at FROM facts WHERE 1=1`
	var args []any

	if filter.ArtifactID != "" {
		query += ` AND artifact_id = ?`
		args = append(args, filter.ArtifactID)
	}
	if filter.ReportWeek != "" {
		query += ` AND report_week = ?`
		args = append(args, filter.ReportWeek)
	}
	if filter.Entity != "" {
		query += ` AND entity = ?`
		args = append(args, filter.Entity)
	}
	query += ` ORDER BY created_at, rowid LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list facts")
	}
	defer rows.Close()

	var out []model.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list facts iterate")
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEvidence(row scannable) (*model.Evidence, error) {
	var ev model.Evidence
	var data string
	if err := row.Scan(&ev.ID, &ev.ArtifactID, &ev.Locator, &ev.ContentType, &ev.Preview, &data, &ev.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "store: scan evidence")
	}
	if err := json.Unmarshal([]byte(data), &ev.FullData); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal full_data")
	}
	return &ev, nil
}

func scanFact(row scannable) (*model.Fact, error) {
	var f model.Fact
	var data string
	var evidenceID sql.NullString
	if err := row.Scan(&f.ID, &f.ArtifactID, &f.ReportWeek, &f.Entity, &data, &evidenceID, &f.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "store: scan fact")
	}
	if err := json.Unmarshal([]byte(data), &f.Metrics); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal metrics")
	}
	f.EvidenceID = evidenceID.String
	return &f, nil
}
