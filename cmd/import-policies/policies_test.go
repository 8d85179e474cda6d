package main

import (
	"testing"

	"SafeStack/internal/models"
	"SafeStack/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := util.InitDatabase("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

const doc = `{"version":"2025.1","policies":[
  {"id":"PPE_HARD_HAT","title":"Hard Hat Required","level":3,"description":"Wear a hard hat."},
  {"id":"PPE_VEST","title":"Hi-Vis Vest","level":2,"description":"Wear a vest."}
]}`

func TestParsePolicies(t *testing.T) {
	f, err := parsePolicies([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "2025.1", f.Version)
	assert.Len(t, f.Policies, 2)

	f, err = parsePolicies([]byte(`[{"title":"Gloves","level":1}]`))
	require.NoError(t, err)
	assert.Equal(t, "Gloves", f.Policies[0].Title)

	_, err = parsePolicies([]byte(`[{"level":1}]`))
	assert.Error(t, err)
	_, err = parsePolicies([]byte(`not json`))
	assert.Error(t, err)
}

func TestImportUpsertsByTitle(t *testing.T) {
	db := testDB(t)
	existing, err := models.CreatePolicy(db, "Hard Hat Required", 1, "old")
	require.NoError(t, err)

	f, err := parsePolicies([]byte(doc))
	require.NoError(t, err)
	n, err := importPolicies(db, f, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := models.FindPolicyByTitle(db, "Hard Hat Required")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
	assert.Equal(t, 3, got.Level)
	assert.Equal(t, "Wear a hard hat.", got.Description)

	all, err := models.ListCatalogPolicies(db)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImportReplaceClearsAlerts(t *testing.T) {
	db := testDB(t)
	p, err := models.CreatePolicy(db, "Ladder Safety", 2, "")
	require.NoError(t, err)
	_, err = models.CreateAlert(db, models.NewAlert{PolicyID: p.ID, Explanation: "x"})
	require.NoError(t, err)

	f, err := parsePolicies([]byte(doc))
	require.NoError(t, err)
	_, err = importPolicies(db, f, true)
	require.NoError(t, err)

	_, err = models.FindPolicyByTitle(db, "Ladder Safety")
	assert.ErrorIs(t, err, models.ErrNotFound)
	st, err := models.GetStats(db)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Alerts)
	assert.Equal(t, int64(2), st.Policies)
}
