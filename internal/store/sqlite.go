package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/hazard-cli/internal/hazard"
	"github.com/sells-group/hazard-cli/internal/imt"
	"github.com/sells-group/hazard-cli/internal/pmap"
	"github.com/sells-group/hazard-cli/internal/resilience"
	"github.com/sells-group/hazard-cli/internal/site"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS calculations (
	id          TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	num_sites   INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sites (
	calc_id TEXT NOT NULL REFERENCES calculations(id),
	sid     INTEGER NOT NULL,
	lon     REAL NOT NULL,
	lat     REAL NOT NULL,
	depth   REAL NOT NULL,
	PRIMARY KEY (calc_id, sid)
);

CREATE TABLE IF NOT EXISTS hazard_curves (
	calc_id TEXT NOT NULL REFERENCES calculations(id),
	sid     INTEGER NOT NULL,
	imt     TEXT NOT NULL,
	iml     REAL NOT NULL,
	poe     REAL NOT NULL,
	PRIMARY KEY (calc_id, sid, imt, iml)
);

CREATE TABLE IF NOT EXISTS hazard_maps (
	calc_id TEXT NOT NULL REFERENCES calculations(id),
	sid     INTEGER NOT NULL,
	map_key TEXT NOT NULL,
	value   REAL NOT NULL,
	PRIMARY KEY (calc_id, sid, map_key)
);

CREATE TABLE IF NOT EXISTS uhs (
	calc_id TEXT NOT NULL REFERENCES calculations(id),
	sid     INTEGER NOT NULL,
	poe     REAL NOT NULL,
	imt     TEXT NOT NULL,
	period  REAL NOT NULL,
	value   REAL NOT NULL,
	PRIMARY KEY (calc_id, sid, poe, imt)
);

CREATE INDEX IF NOT EXISTS idx_calculations_status ON calculations(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCalculation(ctx context.Context, description string, sites *site.Collection) (*Calculation, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO calculations (id, description, status, num_sites, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, description, string(StatusRunning), sites.Len(), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert calculation")
	}

	rows := make([][]any, 0, sites.Len())
	for _, st := range sites.Sites() {
		rows = append(rows, []any{id, int64(st.SID), st.Lon, st.Lat, st.Depth})
	}
	if _, err := insertRows(ctx, tx, "sites", siteColumns, rows); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit calculation")
	}

	return &Calculation{
		ID:          id,
		Description: description,
		Status:      StatusRunning,
		NumSites:    sites.Len(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *SQLiteStore) UpdateCalculationStatus(ctx context.Context, calcID string, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE calculations SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), calcID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update calculation status %s", calcID)
	}
	return checkRowsAffected(res, "calculation", calcID)
}

func (s *SQLiteStore) GetCalculation(ctx context.Context, calcID string) (*Calculation, error) {
	var c Calculation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, description, status, num_sites, created_at, updated_at FROM calculations WHERE id = ?`,
		calcID,
	).Scan(&c.ID, &c.Description, &c.Status, &c.NumSites, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("calculation not found: %s", calcID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan calculation")
	}
	return &c, nil
}

func (s *SQLiteStore) SaveHazardCurves(ctx context.Context, calcID string, pm *pmap.ProbabilityMap, imtls imt.IMTLs) (int64, error) {
	rows, err := curveRows(calcID, pm, imtls)
	if err != nil {
		return 0, err
	}
	return s.saveRows(ctx, "hazard_curves", curveColumns, rows)
}

func (s *SQLiteStore) SaveHazardMaps(ctx context.Context, calcID string, maps *hazard.HazardMaps) (int64, error) {
	rows, err := mapRows(calcID, maps)
	if err != nil {
		return 0, err
	}
	return s.saveRows(ctx, "hazard_maps", mapColumns, rows)
}

func (s *SQLiteStore) SaveUHS(ctx context.Context, calcID string, uhs []hazard.UHS) (int64, error) {
	return s.saveRows(ctx, "uhs", uhsColumns, uhsRows(calcID, uhs))
}

func (s *SQLiteStore) saveRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("sqlite", "save "+table)

	var n int64
	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return eris.Wrap(err, "sqlite: begin tx")
		}
		defer tx.Rollback() //nolint:errcheck

		if n, err = insertRows(ctx, tx, table, columns, rows); err != nil {
			return err
		}
		return eris.Wrapf(tx.Commit(), "sqlite: commit %s", table)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// helpers

// insertRows writes rows through one prepared statement. Rows with an
// existing primary key replace the stored values.
func insertRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (%s) VALUES (%s)`, table, strings.Join(columns, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert into %s", table)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert into %s", table)
		}
	}
	return int64(len(rows)), nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
