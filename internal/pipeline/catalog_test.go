package pipeline

import (
	"context"
	"testing"
	"time"

	"SafeStack/internal/models"
	"SafeStack/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCatalog(t *testing.T) {
	assert.Equal(t, "", RenderCatalog(nil))

	text := RenderCatalog([]models.Policy{
		{Title: "Clear Walkways", Level: 1, Description: "Keep aisles clear."},
		{Title: "Hard Hat Required", Level: 3, Description: "Wear a hard hat."},
	})
	want := "[Severity 1] Clear Walkways\n\nDescription: Keep aisles clear.\n\n" +
		"[Severity 3] Hard Hat Required\n\nDescription: Wear a hard hat."
	assert.Equal(t, want, text)
}

func TestCatalogCachesUntilInvalidated(t *testing.T) {
	db := newTestDB(t)
	_, err := models.CreatePolicy(db, "Hard Hat Required", 3, "Wear a hard hat.")
	require.NoError(t, err)

	c := cache.NewGoCache(cache.LocalConfig{DefaultExpiration: time.Minute, CleanupInterval: time.Minute})
	catalog := NewCatalog(NewGormRepository(db).Policies(), c, time.Minute)
	ctx := context.Background()

	first, err := catalog.Text(ctx)
	require.NoError(t, err)

	_, err = models.CreatePolicy(db, "Hi-Vis Vest", 2, "Wear a vest.")
	require.NoError(t, err)

	cached, err := catalog.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	catalog.Invalidate(ctx)
	fresh, err := catalog.Text(ctx)
	require.NoError(t, err)
	assert.Contains(t, fresh, "[Severity 2] Hi-Vis Vest")
}

func TestCatalogWithoutCacheAlwaysReads(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalog(NewGormRepository(db).Policies(), nil, 0)

	text, err := catalog.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", text)

	_, err = models.CreatePolicy(db, "Hard Hat Required", 3, "Wear a hard hat.")
	require.NoError(t, err)
	text, err = catalog.Text(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "Hard Hat Required")
	catalog.Invalidate(context.Background())
}
