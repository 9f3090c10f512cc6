package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/vector"
)

// postgresSchema needs the pgvector extension. Embedding width is left open
// so any embedding model can index into the same table.
const postgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS catalog_policies (
	id                               TEXT PRIMARY KEY,
	name                             TEXT NOT NULL,
	insurer                          TEXT NOT NULL DEFAULT '',
	waiting_period_preexisting_years INTEGER,
	co_pay_percent                   DOUBLE PRECISION,
	room_rent_limit                  TEXT,
	waiting_period_maternity_months  INTEGER,
	covers_maternity                 BOOLEAN,
	covers_opd                       BOOLEAN,
	created_at                       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS uploaded_policies (
	id                               TEXT PRIMARY KEY,
	user_label                       TEXT NOT NULL DEFAULT '',
	insurer                          TEXT NOT NULL DEFAULT '',
	status                           TEXT NOT NULL,
	waiting_period_preexisting_years INTEGER,
	co_pay_percent                   DOUBLE PRECISION,
	room_rent_limit                  TEXT,
	waiting_period_maternity_months  INTEGER,
	covers_maternity                 BOOLEAN,
	covers_opd                       BOOLEAN,
	uploaded_at                      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS policy_chunks (
	id           TEXT PRIMARY KEY,
	policy_id    TEXT NOT NULL REFERENCES uploaded_policies(id),
	chunk_index  INTEGER NOT NULL,
	content      TEXT NOT NULL,
	section_type TEXT NOT NULL DEFAULT '',
	page_number  INTEGER NOT NULL DEFAULT 0,
	embedding    vector
);

CREATE INDEX IF NOT EXISTS idx_policy_chunks_policy ON policy_chunks(policy_id, chunk_index);
`

// PostgresStore searches clauses with pgvector and Postgres full-text search
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open connection. The schema is not touched.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects, pings and migrates
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewPostgresStore(db), nil
}

// Close closes the underlying connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// GetCatalogPolicy returns the catalog record with the given ID
func (s *PostgresStore) GetCatalogPolicy(ctx context.Context, id string) (*model.CatalogPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, insurer, `+scoringColumns+` FROM catalog_policies WHERE id = $1`, id)

	p, err := scanCatalog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog policy: %w", err)
	}
	return p, nil
}

// ListCatalogPolicies returns every catalog record in insertion order
func (s *PostgresStore) ListCatalogPolicies(ctx context.Context) ([]model.CatalogPolicy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, insurer, `+scoringColumns+` FROM catalog_policies ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list catalog policies: %w", err)
	}
	defer rows.Close()

	var out []model.CatalogPolicy
	for rows.Next() {
		p, err := scanCatalog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan catalog policy: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetUploadedPolicy returns the uploaded policy with the given ID
func (s *PostgresStore) GetUploadedPolicy(ctx context.Context, id string) (*model.UploadedPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_label, insurer, status, `+scoringColumns+`, uploaded_at FROM uploaded_policies WHERE id = $1`, id)

	p, err := scanUploadedPostgres(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get uploaded policy: %w", err)
	}
	return p, nil
}

// FindUploadedDocumentForInsurer narrows candidates in SQL and ranks them with PickForInsurer
func (s *PostgresStore) FindUploadedDocumentForInsurer(ctx context.Context, insurer string) (*model.UploadedPolicy, error) {
	insurer = strings.TrimSpace(insurer)
	if insurer == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_label, insurer, status, `+scoringColumns+`, uploaded_at
		 FROM uploaded_policies
		 WHERE status = $1 AND insurer <> ''
		   AND (strpos(lower(insurer), lower($2)) > 0 OR strpos(lower($2), lower(insurer)) > 0)`,
		string(model.UploadStatusIndexed), insurer)
	if err != nil {
		return nil, fmt.Errorf("list indexed uploads: %w", err)
	}
	defer rows.Close()

	var docs []model.UploadedPolicy
	for rows.Next() {
		p, err := scanUploadedPostgres(rows)
		if err != nil {
			return nil, fmt.Errorf("scan uploaded policy: %w", err)
		}
		docs = append(docs, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return PickForInsurer(insurer, docs), nil
}

// SemanticSearch orders the document's chunks by cosine distance
func (s *PostgresStore) SemanticSearch(ctx context.Context, vec []float32, docID string, topK int) ([]model.EvidenceChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, section_type, page_number, 1 - (embedding <=> $1::vector) AS score
		 FROM policy_chunks
		 WHERE policy_id = $2 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1::vector, chunk_index
		 LIMIT $3`,
		vector.Literal(vec), docID, topK)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return scanChunks(rows)
}

// SectionSearch is SemanticSearch restricted to the given sections
func (s *PostgresStore) SectionSearch(ctx context.Context, vec []float32, docID string, sections []model.SectionType, topK int) ([]model.EvidenceChunk, error) {
	if len(sections) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, section_type, page_number, 1 - (embedding <=> $1::vector) AS score
		 FROM policy_chunks
		 WHERE policy_id = $2 AND embedding IS NOT NULL AND section_type = ANY($4)
		 ORDER BY embedding <=> $1::vector, chunk_index
		 LIMIT $3`,
		vector.Literal(vec), docID, topK, pq.Array(sectionStrings(sections)))
	if err != nil {
		return nil, fmt.Errorf("section search: %w", err)
	}
	return scanChunks(rows)
}

// KeywordSearch combines full-text rank with a raw substring fallback
func (s *PostgresStore) KeywordSearch(ctx context.Context, text, docID string, topK int) ([]model.EvidenceChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, section_type, page_number,
		        ts_rank(to_tsvector('english', content), plainto_tsquery('english', $1)) AS score
		 FROM policy_chunks
		 WHERE policy_id = $2
		   AND (to_tsvector('english', content) @@ plainto_tsquery('english', $1)
		        OR strpos(lower(content), lower($1)) > 0)
		 ORDER BY score DESC, chunk_index
		 LIMIT $3`,
		text, docID, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]model.EvidenceChunk, error) {
	defer rows.Close()

	var out []model.EvidenceChunk
	for rows.Next() {
		var (
			c       model.EvidenceChunk
			section string
		)
		if err := rows.Scan(&c.ID, &c.Content, &section, &c.PageNumber, &c.Score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.SectionType = model.SectionType(section)
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanUploadedPostgres(row rowScanner) (*model.UploadedPolicy, error) {
	var (
		p      model.UploadedPolicy
		n      nullableFields
		status string
	)
	dest := append([]any{&p.ID, &p.UserLabel, &p.Insurer, &status}, n.dest()...)
	dest = append(dest, &p.UploadedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p.Status = model.UploadStatus(status)
	p.ScoringFields = n.fields()
	return &p, nil
}
