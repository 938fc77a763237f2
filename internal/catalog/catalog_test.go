package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/quantumshop/internal/storage"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	store, err := storage.NewFileStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return New(store)
}

func TestCatalog_Search(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	tests := []struct {
		query string
		ids   []string
	}{
		{"quantum", []string{"1", "4"}},
		{"WEARABLES", []string{"5"}},
		{"holographic", []string{"2"}},
		{"nothing-matches", []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			products, err := c.Search(ctx, tc.query)
			require.NoError(t, err)

			ids := []string{}
			for _, p := range products {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tc.ids, ids)
		})
	}
}

func TestCatalog_ByCategory(t *testing.T) {
	c := newCatalog(t)

	products, err := c.ByCategory(context.Background(), "electronics")
	require.NoError(t, err)
	assert.Len(t, products, 3)
}

func TestCatalog_Availability(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)

	a, err := c.Availability(ctx, "6")
	require.NoError(t, err)
	assert.Equal(t, "Cyber Security Suite", a.Name)
	assert.Equal(t, 100, a.Stock)
	assert.True(t, a.Available)

	_, err = c.Availability(ctx, "404")
	assert.ErrorIs(t, err, apperr.ErrProductNotFound)
}
