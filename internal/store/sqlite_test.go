package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hazard-cli/internal/hazard"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func countRows(t *testing.T, st *SQLiteStore, table, calcID string) int {
	t.Helper()
	var n int
	err := st.db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE calc_id = ?`, calcID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestNewSQLite_InvalidDSN(t *testing.T) {
	_, err := NewSQLite("/nonexistent/dir/subdir/test.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}

func TestNewSQLite_WALMode(t *testing.T) {
	st := newTestSQLiteStore(t)

	var mode string
	require.NoError(t, st.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestSQLite_CreateAndGetCalculation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	f := newFixture(t)

	calc, err := st.CreateCalculation(ctx, "two sites", f.sites)
	require.NoError(t, err)
	assert.NotEmpty(t, calc.ID)
	assert.Equal(t, StatusRunning, calc.Status)
	assert.Equal(t, 2, calc.NumSites)
	assert.Equal(t, 2, countRows(t, st, "sites", calc.ID))

	got, err := st.GetCalculation(ctx, calc.ID)
	require.NoError(t, err)
	assert.Equal(t, "two sites", got.Description)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, 2, got.NumSites)

	var depth float64
	require.NoError(t, st.db.QueryRow(`SELECT depth FROM sites WHERE calc_id = ? AND sid = 1`, calc.ID).Scan(&depth))
	assert.Equal(t, 2.0, depth)
}

func TestSQLite_UpdateCalculationStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	f := newFixture(t)

	calc, err := st.CreateCalculation(ctx, "status", f.sites)
	require.NoError(t, err)

	require.NoError(t, st.UpdateCalculationStatus(ctx, calc.ID, StatusComplete))
	got, err := st.GetCalculation(ctx, calc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)

	err = st.UpdateCalculationStatus(ctx, "missing", StatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calculation not found")
}

func TestSQLite_GetCalculation_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetCalculation(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calculation not found")
}

func TestSQLite_SaveResults(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	f := newFixture(t)

	calc, err := st.CreateCalculation(ctx, "results", f.sites)
	require.NoError(t, err)

	n, err := st.SaveHazardCurves(ctx, calc.ID, f.pm, f.imtls)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, 6, countRows(t, st, "hazard_curves", calc.ID))

	n, err = st.SaveHazardMaps(ctx, calc.ID, f.maps)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = st.SaveUHS(ctx, calc.ID, f.uhs)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, 4, countRows(t, st, "uhs", calc.ID))

	var poe float64
	err = st.db.QueryRow(
		`SELECT poe FROM hazard_curves WHERE calc_id = ? AND sid = 0 AND imt = 'SA(1.0)'`, calc.ID,
	).Scan(&poe)
	require.NoError(t, err)
	assert.Equal(t, 0.3, poe)
}

func TestSQLite_SaveTwiceReplaces(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	f := newFixture(t)

	calc, err := st.CreateCalculation(ctx, "replace", f.sites)
	require.NoError(t, err)

	_, err = st.SaveHazardMaps(ctx, calc.ID, f.maps)
	require.NoError(t, err)

	updated := &hazard.HazardMaps{
		SIDs:    []uint32{0},
		Columns: map[string][]float64{"PGA-0.1": {0.42}},
	}
	_, err = st.SaveHazardMaps(ctx, calc.ID, updated)
	require.NoError(t, err)
	assert.Equal(t, 4, countRows(t, st, "hazard_maps", calc.ID))

	var v float64
	err = st.db.QueryRow(
		`SELECT value FROM hazard_maps WHERE calc_id = ? AND sid = 0 AND map_key = 'PGA-0.1'`, calc.ID,
	).Scan(&v)
	require.NoError(t, err)
	assert.Equal(t, 0.42, v)
}

func TestSQLite_SaveEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.SaveUHS(context.Background(), "any", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
