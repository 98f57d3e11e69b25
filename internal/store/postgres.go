package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/hazard-cli/internal/db"
	"github.com/sells-group/hazard-cli/internal/hazard"
	"github.com/sells-group/hazard-cli/internal/imt"
	"github.com/sells-group/hazard-cli/internal/pmap"
	"github.com/sells-group/hazard-cli/internal/resilience"
	"github.com/sells-group/hazard-cli/internal/site"
)

// pgSiteColumns adds the PostGIS point to the shared site columns.
var pgSiteColumns = []string{"calc_id", "sid", "lon", "lat", "depth", "geom"}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres", "ping")
	if err := resilience.Do(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS calculations (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	description TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	num_sites   INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sites (
	calc_id TEXT NOT NULL REFERENCES calculations(id),
	sid     INTEGER NOT NULL,
	lon     DOUBLE PRECISION NOT NULL,
	lat     DOUBLE PRECISION NOT NULL,
	depth   DOUBLE PRECISION NOT NULL,
	geom    geometry(PointZ, 4326) NOT NULL,
	PRIMARY KEY (calc_id, sid)
);

CREATE TABLE IF NOT EXISTS hazard_curves (
	calc_id TEXT NOT NULL REFERENCES calculations(id),
	sid     INTEGER NOT NULL,
	imt     TEXT NOT NULL,
	iml     DOUBLE PRECISION NOT NULL,
	poe     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (calc_id, sid, imt, iml)
);

CREATE TABLE IF NOT EXISTS hazard_maps (
	calc_id TEXT NOT NULL REFERENCES calculations(id),
	sid     INTEGER NOT NULL,
	map_key TEXT NOT NULL,
	value   DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (calc_id, sid, map_key)
);

CREATE TABLE IF NOT EXISTS uhs (
	calc_id TEXT NOT NULL REFERENCES calculations(id),
	sid     INTEGER NOT NULL,
	poe     DOUBLE PRECISION NOT NULL,
	imt     TEXT NOT NULL,
	period  DOUBLE PRECISION NOT NULL,
	value   DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (calc_id, sid, poe, imt)
);

CREATE INDEX IF NOT EXISTS idx_calculations_status ON calculations(status);
CREATE INDEX IF NOT EXISTS idx_sites_geom ON sites USING GIST (geom);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateCalculation(ctx context.Context, description string, sites *site.Collection) (*Calculation, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO calculations (id, description, status, num_sites, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, description, string(StatusRunning), sites.Len(), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert calculation")
	}

	rows := make([][]any, 0, sites.Len())
	for _, st := range sites.Sites() {
		g, err := EncodeSite(st)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{id, int64(st.SID), st.Lon, st.Lat, st.Depth, g})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "sites", pgSiteColumns, rows); err != nil {
		return nil, eris.Wrap(err, "postgres: copy sites")
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

func (s *PostgresStore) UpdateCalculationStatus(ctx context.Context, calcID string, status Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE calculations SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), calcID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update calculation status %s", calcID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("calculation not found: %s", calcID)
	}
	return nil
}

func (s *PostgresStore) GetCalculation(ctx context.Context, calcID string) (*Calculation, error) {
	var c Calculation
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, description, status, num_sites, created_at, updated_at FROM calculations WHERE id = $1`,
		calcID,
	).Scan(&c.ID, &c.Description, &status, &c.NumSites, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("calculation not found: %s", calcID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get calculation %s", calcID)
	}
	c.Status = Status(status)
	return &c, nil
}

// SaveHazardCurves upserts, so saving a calculation twice overwrites its curves.
func (s *PostgresStore) SaveHazardCurves(ctx context.Context, calcID string, pm *pmap.ProbabilityMap, imtls imt.IMTLs) (int64, error) {
	rows, err := curveRows(calcID, pm, imtls)
	if err != nil {
		return 0, err
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "hazard_curves",
		Columns:      curveColumns,
		ConflictKeys: []string{"calc_id", "sid", "imt", "iml"},
	}, rows)
	return n, eris.Wrap(err, "postgres: save hazard curves")
}

func (s *PostgresStore) SaveHazardMaps(ctx context.Context, calcID string, maps *hazard.HazardMaps) (int64, error) {
	rows, err := mapRows(calcID, maps)
	if err != nil {
		return 0, err
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "hazard_maps",
		Columns:      mapColumns,
		ConflictKeys: []string{"calc_id", "sid", "map_key"},
	}, rows)
	return n, eris.Wrap(err, "postgres: save hazard maps")
}

func (s *PostgresStore) SaveUHS(ctx context.Context, calcID string, uhs []hazard.UHS) (int64, error) {
	n, err := db.CopyFrom(ctx, s.pool, "uhs", uhsColumns, uhsRows(calcID, uhs))
	return n, eris.Wrap(err, "postgres: save uhs")
}

// EncodeSite converts a site to an EWKB point with SRID 4326. The depth is
// carried as the Z coordinate.
func EncodeSite(st site.Site) ([]byte, error) {
	g := geom.NewPointFlat(geom.XYZ, []float64{st.Lon, st.Lat, st.Depth}).SetSRID(4326)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: encode site %d", st.SID)
	}
	return data, nil
}
