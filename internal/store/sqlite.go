package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/vector"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS catalog_policies (
	id                               TEXT PRIMARY KEY,
	name                             TEXT NOT NULL,
	insurer                          TEXT NOT NULL DEFAULT '',
	waiting_period_preexisting_years INTEGER,
	co_pay_percent                   REAL,
	room_rent_limit                  TEXT,
	waiting_period_maternity_months  INTEGER,
	covers_maternity                 INTEGER,
	covers_opd                       INTEGER,
	created_at                       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS uploaded_policies (
	id                               TEXT PRIMARY KEY,
	user_label                       TEXT NOT NULL DEFAULT '',
	insurer                          TEXT NOT NULL DEFAULT '',
	status                           TEXT NOT NULL,
	waiting_period_preexisting_years INTEGER,
	co_pay_percent                   REAL,
	room_rent_limit                  TEXT,
	waiting_period_maternity_months  INTEGER,
	covers_maternity                 INTEGER,
	covers_opd                       INTEGER,
	uploaded_at                      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS policy_chunks (
	id           TEXT PRIMARY KEY,
	policy_id    TEXT NOT NULL,
	chunk_index  INTEGER NOT NULL,
	content      TEXT NOT NULL,
	section_type TEXT NOT NULL DEFAULT '',
	page_number  INTEGER NOT NULL DEFAULT 0,
	embedding    BLOB,
	FOREIGN KEY (policy_id) REFERENCES uploaded_policies(id)
);

CREATE INDEX IF NOT EXISTS idx_policy_chunks_policy ON policy_chunks(policy_id, chunk_index);
CREATE INDEX IF NOT EXISTS idx_uploaded_policies_status ON uploaded_policies(status);
`

// SQLiteStore keeps everything in one SQLite file. Similarity is computed
// in process over the document's chunks.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database and runs migrations
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutCatalogPolicy inserts or replaces a catalog record
func (s *SQLiteStore) PutCatalogPolicy(ctx context.Context, p model.CatalogPolicy) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	args := append([]any{p.ID, p.Name, p.Insurer}, fieldArgs(p.ScoringFields)...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO catalog_policies (id, name, insurer, `+scoringColumns+`, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("insert catalog policy: %w", err)
	}
	return nil
}

// PutUploadedPolicy inserts or replaces an uploaded policy record and returns its ID
func (s *SQLiteStore) PutUploadedPolicy(ctx context.Context, p model.UploadedPolicy) (string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.UploadedAt.IsZero() {
		p.UploadedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = model.UploadStatusPending
	}
	args := append([]any{p.ID, p.UserLabel, p.Insurer, string(p.Status)}, fieldArgs(p.ScoringFields)...)
	args = append(args, p.UploadedAt.UTC().Format(time.RFC3339Nano))

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO uploaded_policies (id, user_label, insurer, status, `+scoringColumns+`, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return "", fmt.Errorf("insert uploaded policy: %w", err)
	}
	return p.ID, nil
}

// PutChunk stores one indexed clause with its embedding
func (s *SQLiteStore) PutChunk(ctx context.Context, policyID string, index int, chunk model.EvidenceChunk, embedding []float32) error {
	if chunk.ID == "" {
		chunk.ID = uuid.New().String()
	}
	var blob []byte
	if len(embedding) > 0 {
		blob = vector.Encode(embedding)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO policy_chunks (id, policy_id, chunk_index, content, section_type, page_number, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, policyID, index, chunk.Content, string(chunk.SectionType), chunk.PageNumber, blob)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

// GetCatalogPolicy returns the catalog record with the given ID
func (s *SQLiteStore) GetCatalogPolicy(ctx context.Context, id string) (*model.CatalogPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, insurer, `+scoringColumns+` FROM catalog_policies WHERE id = ?`, id)

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
func (s *SQLiteStore) ListCatalogPolicies(ctx context.Context) ([]model.CatalogPolicy, error) {
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
func (s *SQLiteStore) GetUploadedPolicy(ctx context.Context, id string) (*model.UploadedPolicy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_label, insurer, status, `+scoringColumns+`, uploaded_at FROM uploaded_policies WHERE id = ?`, id)

	p, err := scanUploadedSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get uploaded policy: %w", err)
	}
	return p, nil
}

// FindUploadedDocumentForInsurer picks the indexed upload standing in for the insurer
func (s *SQLiteStore) FindUploadedDocumentForInsurer(ctx context.Context, insurer string) (*model.UploadedPolicy, error) {
	if strings.TrimSpace(insurer) == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_label, insurer, status, `+scoringColumns+`, uploaded_at
		 FROM uploaded_policies WHERE status = ? AND insurer <> ''`, string(model.UploadStatusIndexed))
	if err != nil {
		return nil, fmt.Errorf("list indexed uploads: %w", err)
	}
	defer rows.Close()

	var docs []model.UploadedPolicy
	for rows.Next() {
		p, err := scanUploadedSQLite(rows)
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

// SemanticSearch ranks the document's chunks by cosine similarity to vec
func (s *SQLiteStore) SemanticSearch(ctx context.Context, vec []float32, docID string, topK int) ([]model.EvidenceChunk, error) {
	return s.semantic(ctx, vec, docID, nil, topK)
}

// SectionSearch is SemanticSearch restricted to the given sections
func (s *SQLiteStore) SectionSearch(ctx context.Context, vec []float32, docID string, sections []model.SectionType, topK int) ([]model.EvidenceChunk, error) {
	if len(sections) == 0 {
		return nil, nil
	}
	return s.semantic(ctx, vec, docID, sections, topK)
}

func (s *SQLiteStore) semantic(ctx context.Context, vec []float32, docID string, sections []model.SectionType, topK int) ([]model.EvidenceChunk, error) {
	query := `SELECT id, content, section_type, page_number, embedding FROM policy_chunks
		WHERE policy_id = ? AND embedding IS NOT NULL`
	args := []any{docID}
	if len(sections) > 0 {
		query += ` AND section_type IN (?` + strings.Repeat(", ?", len(sections)-1) + `)`
		for _, sec := range sectionStrings(sections) {
			args = append(args, sec)
		}
	}
	query += ` ORDER BY chunk_index, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer rows.Close()

	var out []model.EvidenceChunk
	for rows.Next() {
		var (
			c       model.EvidenceChunk
			section string
			blob    []byte
		)
		if err := rows.Scan(&c.ID, &c.Content, &section, &c.PageNumber, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		emb, err := vector.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		c.SectionType = model.SectionType(section)
		c.Score = vector.Cosine(vec, emb)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return topByScore(out, topK), nil
}

// KeywordSearch ranks chunks containing the query phrase or its terms
func (s *SQLiteStore) KeywordSearch(ctx context.Context, text, docID string, topK int) ([]model.EvidenceChunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, section_type, page_number FROM policy_chunks
		 WHERE policy_id = ? ORDER BY chunk_index, id`, docID)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var out []model.EvidenceChunk
	for rows.Next() {
		var (
			c       model.EvidenceChunk
			section string
		)
		if err := rows.Scan(&c.ID, &c.Content, &section, &c.PageNumber); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if c.Score = keywordScore(c.Content, text); c.Score == 0 {
			continue
		}
		c.SectionType = model.SectionType(section)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return topByScore(out, topK), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalog(row rowScanner) (*model.CatalogPolicy, error) {
	var (
		p model.CatalogPolicy
		n nullableFields
	)
	dest := append([]any{&p.ID, &p.Name, &p.Insurer}, n.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p.ScoringFields = n.fields()
	return &p, nil
}

func scanUploadedSQLite(row rowScanner) (*model.UploadedPolicy, error) {
	var (
		p        model.UploadedPolicy
		n        nullableFields
		status   string
		uploaded string
	)
	dest := append([]any{&p.ID, &p.UserLabel, &p.Insurer, &status}, n.dest()...)
	dest = append(dest, &uploaded)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p.Status = model.UploadStatus(status)
	p.UploadedAt, _ = time.Parse(time.RFC3339Nano, uploaded)
	p.ScoringFields = n.fields()
	return &p, nil
}
