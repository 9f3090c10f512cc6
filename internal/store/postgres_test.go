package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimcheck/internal/model"
)

var chunkColumns = []string{"id", "content", "section_type", "page_number", "score"}

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresStore(db), mock
}

func TestPostgres_GetCatalogPolicy(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	cols := []string{"id", "name", "insurer",
		"waiting_period_preexisting_years", "co_pay_percent", "room_rent_limit",
		"waiting_period_maternity_months", "covers_maternity", "covers_opd"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog_policies WHERE id = $1")).
		WithArgs("tata-medicare").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("tata-medicare", "Medicare Premier", "Tata AIG", 3, 10.0, nil, nil, true, nil))

	p, err := s.GetCatalogPolicy(ctx, "tata-medicare")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Tata AIG", p.Insurer)
	assert.Equal(t, 3, p.PreexistingWaitYears())
	assert.Equal(t, 10.0, p.CoPay())
	assert.Nil(t, p.RoomRentLimit)
	require.NotNil(t, p.CoversMaternity)
	assert.True(t, *p.CoversMaternity)

	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog_policies WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols))

	p, err = s.GetCatalogPolicy(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPostgres_GetUploadedPolicy_Error(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM uploaded_policies WHERE id = $1")).
		WithArgs("doc-1").
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetUploadedPolicy(context.Background(), "doc-1")
	assert.ErrorContains(t, err, "connection reset")
}

func TestPostgres_FindUploadedDocumentForInsurer(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	cols := []string{"id", "user_label", "insurer", "status",
		"waiting_period_preexisting_years", "co_pay_percent", "room_rent_limit",
		"waiting_period_maternity_months", "covers_maternity", "covers_opd", "uploaded_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM uploaded_policies WHERE status = $1")).
		WithArgs("indexed", "Tata AIG").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("loose", "", "Tata AIG General", "indexed", nil, nil, nil, nil, nil, nil, now).
			AddRow("exact", "", "TATA AIG", "indexed", nil, nil, nil, nil, nil, nil, now.Add(-time.Hour)))

	got, err := s.FindUploadedDocumentForInsurer(context.Background(), " Tata AIG ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "exact", got.ID)
	assert.True(t, got.IsIndexed())
}

func TestPostgres_SemanticSearch(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY embedding <=> $1::vector")).
		WithArgs("[0.5,0.25]", "doc-1", 6).
		WillReturnRows(sqlmock.NewRows(chunkColumns).
			AddRow("c1", "Cataract is covered.", "coverage", 4, 0.91).
			AddRow("c2", "Lens limits apply.", "limits", 5, 0.72))

	got, err := s.SemanticSearch(context.Background(), []float32{0.5, 0.25}, "doc-1", 6)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, model.SectionCoverage, got[0].SectionType)
	assert.Equal(t, 4, got[0].PageNumber)
	assert.InDelta(t, 0.91, got[0].Score, 1e-9)
}

func TestPostgres_SectionSearch(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("section_type = ANY($4)")).
		WithArgs("[1]", "doc-1", 4, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(chunkColumns).
			AddRow("c3", "Pre-existing diseases are excluded for 36 months.", "exclusions", 11, 0.8))

	got, err := s.SectionSearch(context.Background(), []float32{1}, "doc-1", model.ClaimSections, 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.SectionExclusions, got[0].SectionType)

	// no sections means no query at all
	got, err = s.SectionSearch(context.Background(), []float32{1}, "doc-1", nil, 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostgres_KeywordSearch(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("plainto_tsquery('english', $1)")).
		WithArgs("cataract surgery", "doc-1", 4).
		WillReturnError(errors.New("relation \"policy_chunks\" does not exist"))

	_, err := s.KeywordSearch(context.Background(), "cataract surgery", "doc-1", 4)
	assert.ErrorContains(t, err, "keyword search")

	got, err := s.KeywordSearch(context.Background(), " ", "doc-1", 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostgres_KeywordSearchTreatsWildcardsLiterally(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("OR strpos(lower(content), lower($1)) > 0")).
		WithArgs("100%_co-pay", "doc-1", 4).
		WillReturnRows(sqlmock.NewRows(chunkColumns).
			AddRow("c9", "A 100%_co-pay applies to room upgrades.", "limits", 7, 0.0))

	got, err := s.KeywordSearch(context.Background(), "100%_co-pay", "doc-1", 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c9", got[0].ID)
}

func TestPostgres_FindUploadedMatchesInsurerAsPlainText(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("strpos(lower(insurer), lower($2)) > 0")).
		WithArgs("indexed", "Star_Health%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_label", "insurer", "status",
			"waiting_period_preexisting_years", "co_pay_percent", "room_rent_limit",
			"waiting_period_maternity_months", "covers_maternity", "covers_opd", "uploaded_at"}))

	got, err := s.FindUploadedDocumentForInsurer(context.Background(), "Star_Health%")
	require.NoError(t, err)
	assert.Nil(t, got)
}
