// internal/adapter/geodata/boundary_store.go

package geodata

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"mapnav/internal/domain/hierarchy"
	"mapnav/internal/service/layers"
)

// levelTables maps each level to its PostGIS boundary table.
var levelTables = map[hierarchy.Level]string{
	hierarchy.LevelDepartment: "boundaries_departments",
	hierarchy.LevelProvince:   "boundaries_provinces",
	hierarchy.LevelDistrict:   "boundaries_districts",
}

// BoundaryStore loads reference boundary layers from PostGIS. It backs
// deployments that mirror the INEI layers into the database instead of
// serving static files. It implements layers.LayerSource.
type BoundaryStore struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewBoundaryStore creates a boundary store on an existing pool.
func NewBoundaryStore(db *pgxpool.Pool, logger zerolog.Logger) *BoundaryStore {
	return &BoundaryStore{
		db:  db,
		log: logger.With().Str("component", "boundary-store").Logger(),
	}
}

// FetchLayer reads one level's boundary features. Geometry is serialized
// by PostGIS itself; properties ride along as jsonb.
func (s *BoundaryStore) FetchLayer(ctx context.Context, level hierarchy.Level) (*layers.LayerData, error) {
	table, ok := levelTables[level]
	if !ok {
		return nil, fmt.Errorf("no boundary table for level %q", level)
	}

	query := fmt.Sprintf(`
		SELECT ST_AsGeoJSON(geom)::jsonb, properties
		FROM %s
		ORDER BY id
	`, table)
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var geomJSON []byte
		var props map[string]interface{}
		if err := rows.Scan(&geomJSON, &props); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		geom, err := geojson.UnmarshalGeometry(geomJSON)
		if err != nil {
			s.log.Warn().Err(err).Str("table", table).Msg("row with unparsable geometry skipped")
			continue
		}
		f := geojson.NewFeature(geom.Geometry())
		if props != nil {
			f.Properties = geojson.Properties(props)
		}
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}

	return &layers.LayerData{
		Collection: fc,
		Meta:       &layers.LayerMeta{FeatureCount: len(fc.Features)},
	}, nil
}
