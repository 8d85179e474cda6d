package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"SafeStack/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func view(id uint, title string, level int, explanation string) *models.AlertView {
	return &models.AlertView{
		Alert: models.Alert{
			ID:          id,
			Explanation: explanation,
			Severity:    "high",
			Timestamp:   time.Date(2025, 3, 1, 10, 0, int(id), 0, time.UTC),
		},
		PolicyTitle: title,
		PolicyLevel: level,
	}
}

func ids(hits []Hit) []uint {
	out := make([]uint, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.AlertID)
	}
	return out
}

func seeded(t *testing.T) *AlertIndex {
	t.Helper()
	idx, err := NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, view(1, "Hard Hat Required", 3, "worker on site scaffold without a helmet")))
	require.NoError(t, idx.Index(ctx, view(2, "Hi-Vis Vest", 2, "forklift driver on site without vest")))
	require.NoError(t, idx.Index(ctx, view(3, "Hard Hat Required", 3, "site visitor near crane without helmet")))
	return idx
}

func TestSearchMatchesText(t *testing.T) {
	idx := seeded(t)
	hits, err := idx.Search(context.Background(), Request{Query: "helmet"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 3}, ids(hits))

	hits, err = idx.Search(context.Background(), Request{Query: "forklift vest"})
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, ids(hits))
}

func TestSearchMinLevel(t *testing.T) {
	idx := seeded(t)
	hits, err := idx.Search(context.Background(), Request{Query: "site", MinLevel: 3})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 3}, ids(hits))

	hits, err = idx.Search(context.Background(), Request{MinLevel: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestDeleteAndClose(t *testing.T) {
	idx := seeded(t)
	ctx := context.Background()
	require.NoError(t, idx.Delete(ctx, 1))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
	_, err = idx.Search(ctx, Request{Query: "helmet"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenPersistsAndBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.bleve")
	idx, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, idx.IndexBatch(context.Background(), []models.AlertView{
		*view(10, "Hard Hat Required", 3, "no helmet at gate"),
		*view(11, "Hi-Vis Vest", 2, "no vest at gate"),
	}))
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()
	hits, err := idx.Search(context.Background(), Request{Query: "gate"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{10, 11}, ids(hits))
}
