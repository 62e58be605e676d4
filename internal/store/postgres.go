package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/docrecon/internal/db"
	"github.com/sells-group/docrecon/internal/model"
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

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS artifacts (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	source_path TEXT NOT NULL,
	sha256      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS evidence (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	artifact_id  TEXT NOT NULL REFERENCES artifacts(id),
	locator      TEXT NOT NULL,
	content_type TEXT NOT NULL,
	preview      TEXT NOT NULL DEFAULT '',
	full_data    JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS facts (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	artifact_id TEXT NOT NULL REFERENCES artifacts(id),
	report_week TEXT NOT NULL,
	entity      TEXT NOT NULL,
	metrics     JSONB NOT NULL DEFAULT '{}'::jsonb,
	evidence_id TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_evidence_artifact ON evidence(artifact_id);
CREATE INDEX IF NOT EXISTS idx_evidence_content_type ON evidence(content_type);
CREATE INDEX IF NOT EXISTS idx_facts_artifact ON facts(artifact_id);
CREATE INDEX IF NOT EXISTS idx_facts_week_entity ON facts(report_week, entity);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) CreateArtifact(ctx context.Context, art *model.Artifact) error {
	if art.CreatedAt.IsZero() {
		art.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO artifacts (id, kind, source_path, sha256, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		art.ID, string(art.Kind), art.SourcePath, art.SHA256, art.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert artifact %s", art.ID)
}

func (s *PostgresStore) GetArtifact(ctx context.Context, id string) (*model.Artifact, error) {
	var a model.Artifact
	var kind string
	err := s.pool.QueryRow(ctx,
		`SELECT id, kind, source_path, sha256, created_at FROM artifacts WHERE id = $1`, id,
	).Scan(&a.ID, &kind, &a.SourcePath, &a.SHA256, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: artifact %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get artifact %s", id)
	}
	a.Kind = model.ArtifactKind(kind)
	return &a, nil
}

func (s *PostgresStore) AddEvidence(ctx context.Context, ev *model.Evidence) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev.FullData)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal full_data")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO evidence (id, artifact_id, locator, content_type, preview, full_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.ArtifactID, ev.Locator, string(ev.ContentType), ev.Preview, data, ev.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert evidence for artifact %s", ev.ArtifactID)
	}
	return ev.ID, nil
}

func (s *PostgresStore) AddFact(ctx context.Context, f *model.Fact) (string, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(f.Metrics)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal metrics")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO facts (id, artifact_id, report_week, entity, metrics, evidence_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		f.ID, f.ArtifactID, f.ReportWeek, f.Entity, data, nullableText(f.EvidenceID), f.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert fact for artifact %s", f.ArtifactID)
	}
	return f.ID, nil
}

var factColumns = []string{"id", "artifact_id", "report_week", "entity", "metrics", "evidence_id", "created_at"}

// AddFacts bulk-loads facts with COPY.
func (s *PostgresStore) AddFacts(ctx context.Context, facts []model.Fact) ([]string, error) {
	now := time.Now().UTC()
	ids := make([]string, 0, len(facts))
	rows := make([][]any, 0, len(facts))
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
			return nil, eris.Wrap(err, "postgres: marshal metrics")
		}
		rows = append(rows, []any{f.ID, f.ArtifactID, f.ReportWeek, f.Entity, data, nullableText(f.EvidenceID), f.CreatedAt})
		ids = append(ids, f.ID)
	}

	if _, err := db.CopyFrom(ctx, s.pool, "facts", factColumns, rows); err != nil {
		return nil, eris.Wrap(err, "postgres: copy facts")
	}
	return ids, nil
}

func (s *PostgresStore) ListEvidence(ctx context.Context, filter EvidenceFilter) ([]model.Evidence, error) {
	query := `SELECT id, artifact_id, locator, content_type, preview, full_data, created_at FROM evidence WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ArtifactID != "" {
		query += fmt.Sprintf(` AND artifact_id = $%d`, argIdx)
		args = append(args, filter.ArtifactID)
		argIdx++
	}
	if filter.ContentType != "" {
		query += fmt.Sprintf(` AND content_type = $%d`, argIdx)
		args = append(args, string(filter.ContentType))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at, id LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evidence")
	}
	defer rows.Close()

	var out []model.Evidence
	for rows.Next() {
		var ev model.Evidence
		var contentType string
		var data []byte
		if err := rows.Scan(&ev.ID, &ev.ArtifactID, &ev.Locator, &contentType, &ev.Preview, &data, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evidence")
		}
		ev.ContentType = model.ContentType(contentType)
		if err := json.Unmarshal(data, &ev.FullData); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal full_data")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list evidence iterate")
}

func (s *PostgresStore) ListFacts(ctx context.Context, filter FactFilter) ([]model.Fact, error) {
	query := `SELECT id, artifact_id, report_week, entity, metrics, evidence_id, created_at FROM facts WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ArtifactID != "" {
		query += fmt.Sprintf(` AND artifact_id = $%d`, argIdx)
		args = append(args, filter.ArtifactID)
		argIdx++
	}
	if filter.ReportWeek != "" {
		query += fmt.Sprintf(` AND report_week = $%d`, argIdx)
		args = append(args, filter.ReportWeek)
		argIdx++
	}
	if filter.Entity != "" {
		query += fmt.Sprintf(` AND entity = $%d`, argIdx)
		args = append(args, filter.Entity)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at, id LIMIT $%d`, argIdx)
	args = append(args, limitOrDefault(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list facts")
	}
	defer rows.Close()

	var out []model.Fact
	for rows.Next() {
		var f model.Fact
		var data []byte
		var evidenceID *string
		if err := rows.Scan(&f.ID, &f.ArtifactID, &f.ReportWeek, &f.Entity, &data, &evidenceID, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact")
		}
		if err := json.Unmarshal(data, &f.Metrics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metrics")
		}
		if evidenceID != nil {
			f.EvidenceID = *evidenceID
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list facts iterate")
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
