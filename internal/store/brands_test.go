package store

import (
	"context"
	"regexp"
	"testing"

	"license-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brandColumns() []string {
	return []string{"id", "name", "system", "tier", "category", "description", "emoji",
		"fee", "royalty", "division", "vault_mesh_id", "parent_id", "use_phrase",
		"subnodes", "metadata", "is_active", "created_at", "updated_at"}
}

func TestFindActiveBrand(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM brands WHERE name = $1 AND system = $2 AND is_active = TRUE")).
		WithArgs("AUREUM PATH", "seedwave").
		WillReturnRows(sqlmock.NewRows(brandColumns()).
			AddRow(int64(11), "AUREUM PATH", "seedwave", "sovereign", "Tech", "", "",
				nil, nil, nil, nil, nil, nil, nil, nil, true, testTime(), testTime()))

	b, err := s.FindActiveBrand(ctx, "AUREUM PATH", "seedwave")
	require.NoError(t, err)
	assert.Equal(t, int64(11), b.ID)
}

func TestFindActiveBrandNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM brands WHERE name = $1 AND system = $2 AND is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows(brandColumns()))

	_, err := s.FindActiveBrand(ctx, "ghost", "faa")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertBrand(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO brands")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(7), testTime(), testTime()))

	b := &models.Brand{Name: "New Brand", System: "faa", Tier: "market"}
	err := s.InsertBrand(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(7), b.ID)
}

func TestSoftDeleteBrands(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE brands SET is_active = FALSE, updated_at = NOW() WHERE id IN ($1, $2)")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	deleted, err := s.SoftDeleteBrands(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestRefreshSystemCount(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO brand_systems")).
		WithArgs("faa").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM brand_systems WHERE system_key = $1")).
		WithArgs("faa").
		WillReturnRows(sqlmock.NewRows([]string{"system_key", "system_name", "total_brands", "is_active", "updated_at"}).
			AddRow("faa", "faa", 4, true, testTime()))

	err := s.RefreshSystemCount(ctx, "faa")
	require.NoError(t, err)

	sys, err := s.GetBrandSystem(ctx, "faa")
	require.NoError(t, err)
	assert.Equal(t, 4, sys.TotalBrands)
}

func TestGetBrandSystemNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM brand_systems WHERE system_key = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"system_key"}))

	_, err := s.GetBrandSystem(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
