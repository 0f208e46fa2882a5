package service

import (
	"context"
	"regexp"
	"testing"

	"license-service/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockIngestService(t *testing.T) (*IngestService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewIngestService(store.NewWithDB(db), nil), mock
}

func expectBrandMiss(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM brands WHERE name = $1 AND system = $2 AND is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
}

func expectBrandInsert(mock sqlmock.Sqlmock, id int64) {
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO brands")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(id, testTime(), testTime()))
}

func expectCountRefresh(mock sqlmock.Sqlmock, system string) {
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO brand_systems")).
		WithArgs(system).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestIngestBrandsPartialBatch(t *testing.T) {
	svc, mock := newMockIngestService(t)
	ctx := context.Background()

	// Record 2 is missing its tier; records 1 and 3 persist regardless.
	expectBrandMiss(mock)
	expectBrandInsert(mock, 1)
	expectCountRefresh(mock, "faa")
	expectBrandMiss(mock)
	expectBrandInsert(mock, 2)
	expectCountRefresh(mock, "faa")

	records := []BrandRecord{
		{Name: "Brand One", System: "faa", Tier: "sovereign"},
		{Name: "Brand Two", System: "faa"},
		{Name: "Brand Three", System: "faa", Tier: "market"},
	}

	result, err := svc.IngestBrands(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.Details.Errors, 1)
	assert.Equal(t, "Brand Two", result.Details.Errors[0].Brand)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestBrandsUpdatesExisting(t *testing.T) {
	svc, mock := newMockIngestService(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM brands WHERE name = $1 AND system = $2 AND is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "system", "tier", "category", "description", "emoji",
			"fee", "royalty", "division", "vault_mesh_id", "parent_id", "use_phrase", "subnodes", "metadata",
			"is_active", "created_at", "updated_at"}).
			AddRow(int64(11), "Brand One", "faa", "market", "", "", "",
				nil, nil, nil, nil, nil, nil, nil, nil, true, testTime(), testTime()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE brands")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectCountRefresh(mock, "faa")

	result, err := svc.IngestBrands(ctx, []BrandRecord{
		{Name: "Brand One", System: "faa", Tier: "sovereign"},
	})
	require.NoError(t, err)
	require.Len(t, result.Details.Inserted, 1)
	// Same persistent identity, no duplicate.
	assert.Equal(t, int64(11), result.Details.Inserted[0].ID)
	assert.Equal(t, "updated", result.Details.Inserted[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestBrandsMissingNameReportedAsUnknown(t *testing.T) {
	svc, _ := newMockIngestService(t)
	ctx := context.Background()

	result, err := svc.IngestBrands(ctx, []BrandRecord{{System: "faa", Tier: "market"}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	require.Len(t, result.Details.Errors, 1)
	assert.Equal(t, "unknown", result.Details.Errors[0].Brand)
}

func TestIngestBrandsRefreshesCountPerRecord(t *testing.T) {
	svc, mock := newMockIngestService(t)
	ctx := context.Background()

	// N fresh records for one system mean N count recomputations, so the
	// aggregate tracks the live count after every write.
	const n = 3
	for i := 0; i < n; i++ {
		expectBrandMiss(mock)
		expectBrandInsert(mock, int64(i+1))
		expectCountRefresh(mock, "faa")
	}

	records := []BrandRecord{
		{Name: "A", System: "faa", Tier: "market"},
		{Name: "B", System: "faa", Tier: "market"},
		{Name: "C", System: "faa", Tier: "market"},
	}

	result, err := svc.IngestBrands(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, n, result.Inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBrandsEmptyIDs(t *testing.T) {
	svc, _ := newMockIngestService(t)
	ctx := context.Background()

	_, err := svc.DeleteBrands(ctx, nil)

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestDeleteBrandsRefreshesSystems(t *testing.T) {
	svc, mock := newMockIngestService(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT system FROM brands WHERE id IN ($1, $2)")).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"system"}).AddRow("faa").AddRow("seedwave"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE brands SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	expectCountRefresh(mock, "faa")
	expectCountRefresh(mock, "seedwave")

	deleted, err := svc.DeleteBrands(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
