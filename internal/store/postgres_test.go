package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/hazard-cli/internal/db"
	"github.com/sells-group/hazard-cli/internal/site"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateCalculation(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	f := newFixture(t)

	mock.ExpectExec(`INSERT INTO calculations`).
		WithArgs(pgxmock.AnyArg(), "pg run", "running", 2, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"sites"}, pgSiteColumns).WillReturnResult(2)

	calc, err := s.CreateCalculation(context.Background(), "pg run", f.sites)
	require.NoError(t, err)
	assert.Equal(t, 2, calc.NumSites)
	assert.Equal(t, StatusRunning, calc.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateCalculation_CopyError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	f := newFixture(t)

	mock.ExpectExec(`INSERT INTO calculations`).
		WithArgs(pgxmock.AnyArg(), "pg run", "running", 2, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"sites"}, pgSiteColumns).WillReturnError(fmt.Errorf("no postgis"))

	_, err := s.CreateCalculation(context.Background(), "pg run", f.sites)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy sites")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCalculationStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE calculations SET status = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs("complete", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateCalculationStatus(context.Background(), "missing", StatusComplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calculation not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCalculation(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, description, status, num_sites, created_at, updated_at FROM calculations WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "description", "status", "num_sites", "created_at", "updated_at"}).
			AddRow("c1", "desc", "complete", 3, now, now))

	calc, err := s.GetCalculation(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, calc.Status)
	assert.Equal(t, 3, calc.NumSites)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCalculation_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, description, status`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetCalculation(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calculation not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveHazardCurves_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	f := newFixture(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_hazard_curves"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{db.TempTable("hazard_curves")}, curveColumns).WillReturnResult(6)
	mock.ExpectExec(`INSERT INTO "hazard_curves" .* ON CONFLICT \("calc_id", "sid", "imt", "iml"\) DO UPDATE SET "poe" = EXCLUDED."poe"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 6))
	mock.ExpectCommit()

	n, err := s.SaveHazardCurves(context.Background(), "c1", f.pm, f.imtls)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveHazardMaps_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	f := newFixture(t)

	mock.ExpectBegin().WillReturnError(fmt.Errorf("connection refused"))

	_, err := s.SaveHazardMaps(context.Background(), "c1", f.maps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save hazard maps")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveUHS_Copy(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	f := newFixture(t)

	mock.ExpectCopyFrom(pgx.Identifier{"uhs"}, uhsColumns).WillReturnResult(4)

	n, err := s.SaveUHS(context.Background(), "c1", f.uhs)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeSite(t *testing.T) {
	data, err := EncodeSite(site.Site{SID: 4, Lon: 12.5, Lat: 41.9, Depth: 0.3})
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, 4326, pt.SRID())
	assert.Equal(t, []float64{12.5, 41.9, 0.3}, pt.FlatCoords())
}
