// Package store implements the evidence store: policy records plus semantic,
// section-filtered and keyword search over indexed policy clauses.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Store is everything the claim pipeline reads from the evidence store.
// Record lookups return (nil, nil) when the record is absent.
type Store interface {
	GetCatalogPolicy(ctx context.Context, id string) (*model.CatalogPolicy, error)
	GetUploadedPolicy(ctx context.Context, id string) (*model.UploadedPolicy, error)
	ListCatalogPolicies(ctx context.Context) ([]model.CatalogPolicy, error)
	FindUploadedDocumentForInsurer(ctx context.Context, insurer string) (*model.UploadedPolicy, error)

	SemanticSearch(ctx context.Context, vector []float32, docID string, topK int) ([]model.EvidenceChunk, error)
	SectionSearch(ctx context.Context, vector []float32, docID string, sections []model.SectionType, topK int) ([]model.EvidenceChunk, error)
	KeywordSearch(ctx context.Context, text, docID string, topK int) ([]model.EvidenceChunk, error)

	Close() error
}

// Open connects to the backend named by cfg.Driver
func Open(ctx context.Context, cfg model.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "":
		return OpenSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, cfg.DSN)
	case "mongo", "mongodb":
		return OpenMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store driver: %q (supported: sqlite, postgres, mongo)", cfg.Driver)
	}
}

// PickForInsurer chooses the uploaded document that stands in for a catalog
// policy of the given insurer. Only indexed documents qualify. An exact
// case-insensitive insurer match beats a substring match; within a tier the
// most recent upload wins.
func PickForInsurer(insurer string, docs []model.UploadedPolicy) *model.UploadedPolicy {
	var exact, loose *model.UploadedPolicy
	for i := range docs {
		d := &docs[i]
		if !d.IsIndexed() {
			continue
		}
		switch {
		case model.InsurerEquals(insurer, d.Insurer):
			if exact == nil || d.UploadedAt.After(exact.UploadedAt) {
				exact = d
			}
		case model.InsurerMatches(insurer, d.Insurer):
			if loose == nil || d.UploadedAt.After(loose.UploadedAt) {
				loose = d
			}
		}
	}
	if exact != nil {
		return exact
	}
	return loose
}

// scoringColumns is the column list shared by both policy tables
const scoringColumns = `waiting_period_preexisting_years, co_pay_percent, room_rent_limit,
	waiting_period_maternity_months, covers_maternity, covers_opd`

// nullableFields scans the scoring columns, keeping NULL distinct from zero
type nullableFields struct {
	preexisting sql.NullInt64
	coPay       sql.NullFloat64
	roomRent    sql.NullString
	maternity   sql.NullInt64
	coversMat   sql.NullBool
	coversOPD   sql.NullBool
}

func (n *nullableFields) dest() []any {
	return []any{&n.preexisting, &n.coPay, &n.roomRent, &n.maternity, &n.coversMat, &n.coversOPD}
}

func (n *nullableFields) fields() model.ScoringFields {
	var f model.ScoringFields
	if n.preexisting.Valid {
		f.WaitingPeriodPreexistingYears = model.IntPtr(int(n.preexisting.Int64))
	}
	if n.coPay.Valid {
		f.CoPayPercent = model.FloatPtr(n.coPay.Float64)
	}
	if n.roomRent.Valid {
		f.RoomRentLimit = model.StringPtr(n.roomRent.String)
	}
	if n.maternity.Valid {
		f.WaitingPeriodMaternityMonths = model.IntPtr(int(n.maternity.Int64))
	}
	if n.coversMat.Valid {
		f.CoversMaternity = model.BoolPtr(n.coversMat.Bool)
	}
	if n.coversOPD.Valid {
		f.CoversOPD = model.BoolPtr(n.coversOPD.Bool)
	}
	return f
}

// fieldArgs flattens scoring fields into insert arguments, nil for absent
func fieldArgs(f model.ScoringFields) []any {
	args := make([]any, 6)
	if f.WaitingPeriodPreexistingYears != nil {
		args[0] = *f.WaitingPeriodPreexistingYears
	}
	if f.CoPayPercent != nil {
		args[1] = *f.CoPayPercent
	}
	if f.RoomRentLimit != nil {
		args[2] = *f.RoomRentLimit
	}
	if f.WaitingPeriodMaternityMonths != nil {
		args[3] = *f.WaitingPeriodMaternityMonths
	}
	if f.CoversMaternity != nil {
		args[4] = *f.CoversMaternity
	}
	if f.CoversOPD != nil {
		args[5] = *f.CoversOPD
	}
	return args
}

func sectionStrings(sections []model.SectionType) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = string(s)
	}
	return out
}

// keywordScore ranks content for a raw query: each occurrence of the whole
// phrase counts 2, each occurrence of a query term of 3+ characters counts 1.
func keywordScore(content, query string) float64 {
	content = strings.ToLower(content)
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return 0
	}

	score := 2 * float64(strings.Count(content, query))
	seen := map[string]bool{}
	for _, term := range strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(term)) < 3 || seen[term] {
			continue
		}
		seen[term] = true
		score += float64(strings.Count(content, term))
	}
	return score
}

// topByScore sorts descending by Score, keeping input order on ties, and truncates
func topByScore(chunks []model.EvidenceChunk, topK int) []model.EvidenceChunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if topK > 0 && len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks
}
