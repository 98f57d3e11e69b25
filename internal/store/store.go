// Package store persists calculation results: the site model, hazard
// curves, hazard maps and uniform hazard spectra. The layout is flat, one
// row per value.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hazard-cli/internal/config"
	"github.com/sells-group/hazard-cli/internal/hazard"
	"github.com/sells-group/hazard-cli/internal/imt"
	"github.com/sells-group/hazard-cli/internal/pmap"
	"github.com/sells-group/hazard-cli/internal/site"
)

// Status is the lifecycle state of a calculation.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Calculation is one stored hazard run.
type Calculation struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	NumSites    int       `json:"num_sites"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store defines the persistence interface for calculation results.
type Store interface {
	// Calculations
	CreateCalculation(ctx context.Context, description string, sites *site.Collection) (*Calculation, error)
	UpdateCalculationStatus(ctx context.Context, calcID string, status Status) error
	GetCalculation(ctx context.Context, calcID string) (*Calculation, error)

	// Results
	SaveHazardCurves(ctx context.Context, calcID string, pm *pmap.ProbabilityMap, imtls imt.IMTLs) (int64, error)
	SaveHazardMaps(ctx context.Context, calcID string, maps *hazard.HazardMaps) (int64, error)
	SaveUHS(ctx context.Context, calcID string, uhs []hazard.UHS) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

// Column lists shared by both backends.
var (
	siteColumns  = []string{"calc_id", "sid", "lon", "lat", "depth"}
	curveColumns = []string{"calc_id", "sid", "imt", "iml", "poe"}
	mapColumns   = []string{"calc_id", "sid", "map_key", "value"}
	uhsColumns   = []string{"calc_id", "sid", "poe", "imt", "period", "value"}
)

func curveRows(calcID string, pm *pmap.ProbabilityMap, imtls imt.IMTLs) ([][]any, error) {
	if pm.NumLevels() != imtls.NumLevels() {
		return nil, eris.Errorf("store: probability map has %d levels, intensity measure types have %d", pm.NumLevels(), imtls.NumLevels())
	}
	var rows [][]any
	for _, sid := range pm.SIDs() {
		curve, _ := pm.Get(sid)
		for imti, lv := range imtls {
			start, _ := imtls.Slice(imti)
			for l, iml := range lv.Levels {
				rows = append(rows, []any{calcID, int64(sid), lv.IMT, iml, curve[start+l]})
			}
		}
	}
	return rows, nil
}

func mapRows(calcID string, maps *hazard.HazardMaps) ([][]any, error) {
	var rows [][]any
	for _, key := range maps.Keys() {
		col, _ := maps.Column(key)
		if len(col) != len(maps.SIDs) {
			return nil, eris.Errorf("store: column %s has %d values for %d sites", key, len(col), len(maps.SIDs))
		}
		for i, sid := range maps.SIDs {
			rows = append(rows, []any{calcID, int64(sid), key, col[i]})
		}
	}
	return rows, nil
}

func uhsRows(calcID string, uhs []hazard.UHS) [][]any {
	var rows [][]any
	for _, u := range uhs {
		for _, s := range u.Spectra {
			for k, name := range s.IMTs {
				rows = append(rows, []any{calcID, int64(u.SID), s.PoE, name, s.Periods[k], s.Values[k]})
			}
		}
	}
	return rows
}
