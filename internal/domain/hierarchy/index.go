// internal/domain/hierarchy/index.go

package hierarchy

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"mapnav/internal/domain/geometry"
)

// Level identifies one tier of Peru's administrative subdivision.
type Level string

const (
	LevelDepartment Level = "department"
	LevelProvince   Level = "province"
	LevelDistrict   Level = "district"
)

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelDepartment, LevelProvince, LevelDistrict:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown hierarchy level %q", s)
}

// Deeper returns the next level down, or false at district.
func (l Level) Deeper() (Level, bool) {
	switch l {
	case LevelDepartment:
		return LevelProvince, true
	case LevelProvince:
		return LevelDistrict, true
	}
	return "", false
}

// Shallower returns the next level up, or false at department.
func (l Level) Shallower() (Level, bool) {
	switch l {
	case LevelDistrict:
		return LevelProvince, true
	case LevelProvince:
		return LevelDepartment, true
	}
	return "", false
}

// Depth returns 0 for department, 1 for province, 2 for district.
func (l Level) Depth() int {
	switch l {
	case LevelProvince:
		return 1
	case LevelDistrict:
		return 2
	}
	return 0
}

// CodeWidth returns the normalized code width for the level.
func (l Level) CodeWidth() int {
	switch l {
	case LevelProvince:
		return ProvinceCodeWidth
	case LevelDistrict:
		return UbigeoWidth
	}
	return DepartmentCodeWidth
}

// GeoRegion is one node of the administrative tree. Regions are built
// once from the reference boundary collections and are immutable after
// construction.
type GeoRegion struct {
	ID       string        `json:"id"`
	Level    Level         `json:"level"`
	Code     string        `json:"code"` // normalized: dep 2 digits, province dep+prov 4, district ubigeo 6
	ParentID string        `json:"parentId,omitempty"`
	Name     string        `json:"name"`
	BBox     geometry.BBox `json:"bbox"`
}

// Index is the read-only in-memory tree of administrative regions with
// O(1) code lookups. Lookups accept padded and stripped code spellings.
type Index struct {
	nodesByID   map[string]*GeoRegion
	departments map[string]*GeoRegion
	provinces   map[string]*GeoRegion
	districts   map[string]*GeoRegion
	bounds      geometry.BBox
	hasBounds   bool
}

// Property keys tried, in order, when extracting codes and names from
// reference boundary features. Peruvian INEI layers use the CCDD/CCPP
// and NOMB* conventions; campaign exports use plain lowercase keys.
var (
	departmentCodeKeys = []string{"CCDD", "ccdd", "code", "id"}
	provinceCodeKeys   = []string{"CCPP", "ccpp", "provCode", "prov_code"}
	ubigeoKeys         = []string{"UBIGEO", "ubigeo", "IDDIST", "code", "id"}
	departmentNameKeys = []string{"NOMBDEP", "nombdep", "department", "name"}
	provinceNameKeys   = []string{"NOMBPROV", "nombprov", "province", "name"}
	districtNameKeys   = []string{"NOMBDIST", "nombdist", "district", "name"}
)

// BuildIndex constructs the hierarchy from the three reference boundary
// collections. Features with missing codes or degenerate geometry are
// skipped and logged as data-quality signals; they never fail the build.
// The aggregate bbox of all department polygons becomes the default
// reset viewport.
func BuildIndex(departments, provinces, districts *geojson.FeatureCollection, logger zerolog.Logger) (*Index, error) {
	idx := &Index{
		nodesByID:   make(map[string]*GeoRegion),
		departments: make(map[string]*GeoRegion),
		provinces:   make(map[string]*GeoRegion),
		districts:   make(map[string]*GeoRegion),
	}
	log := logger.With().Str("component", "hierarchy").Logger()

	if departments != nil {
		for _, f := range departments.Features {
			code := stringProp(f, departmentCodeKeys)
			if code == "" {
				log.Warn().Msg("department feature without code skipped")
				continue
			}
			code = PadCode(code, DepartmentCodeWidth)
			box, ok := featureBounds(f, log)
			if !ok {
				continue
			}
			region := &GeoRegion{
				ID:    "dep:" + code,
				Level: LevelDepartment,
				Code:  code,
				Name:  stringProp(f, departmentNameKeys),
				BBox:  box,
			}
			idx.nodesByID[region.ID] = region
			idx.departments[code] = region
			if idx.hasBounds {
				idx.bounds = idx.bounds.Union(box)
			} else {
				idx.bounds = box
				idx.hasBounds = true
			}
		}
	}
	if len(idx.departments) == 0 {
		return nil, fmt.Errorf("no usable department boundaries")
	}

	if provinces != nil {
		for _, f := range provinces.Features {
			dep := PadCode(stringProp(f, departmentCodeKeys), DepartmentCodeWidth)
			prov := PadCode(stringProp(f, provinceCodeKeys), DepartmentCodeWidth)
			if dep == "" || prov == "" {
				log.Warn().Msg("province feature without composite code skipped")
				continue
			}
			box, ok := featureBounds(f, log)
			if !ok {
				continue
			}
			key := dep + prov
			region := &GeoRegion{
				ID:       "prov:" + key,
				Level:    LevelProvince,
				Code:     key,
				ParentID: "dep:" + dep,
				Name:     stringProp(f, provinceNameKeys),
				BBox:     box,
			}
			idx.nodesByID[region.ID] = region
			idx.provinces[key] = region
		}
	}

	if districts != nil {
		for _, f := range districts.Features {
			ubigeo := PadCode(stringProp(f, ubigeoKeys), UbigeoWidth)
			if ubigeo == "" || len(ubigeo) != UbigeoWidth {
				log.Warn().Str("ubigeo", ubigeo).Msg("district feature without ubigeo skipped")
				continue
			}
			box, ok := featureBounds(f, log)
			if !ok {
				continue
			}
			region := &GeoRegion{
				ID:       "dist:" + ubigeo,
				Level:    LevelDistrict,
				Code:     ubigeo,
				ParentID: "prov:" + ubigeo[:ProvinceCodeWidth],
				Name:     stringProp(f, districtNameKeys),
				BBox:     box,
			}
			idx.nodesByID[region.ID] = region
			idx.districts[ubigeo] = region
		}
	}

	log.Info().
		Int("departments", len(idx.departments)).
		Int("provinces", len(idx.provinces)).
		Int("districts", len(idx.districts)).
		Msg("hierarchy index built")
	return idx, nil
}

// FeatureCode extracts the canonical padded code for a boundary feature
// at the given level, using the same property key fallbacks as
// BuildIndex. Province codes are the dep+prov composite. Returns "" when
// the feature carries no usable code.
func FeatureCode(f *geojson.Feature, level Level) string {
	switch level {
	case LevelProvince:
		dep := PadCode(stringProp(f, departmentCodeKeys), DepartmentCodeWidth)
		prov := PadCode(stringProp(f, provinceCodeKeys), DepartmentCodeWidth)
		if dep == "" || prov == "" {
			return ""
		}
		return dep + prov
	case LevelDistrict:
		ubigeo := PadCode(stringProp(f, ubigeoKeys), UbigeoWidth)
		if len(ubigeo) != UbigeoWidth {
			return ""
		}
		return ubigeo
	default:
		return PadCode(stringProp(f, departmentCodeKeys), DepartmentCodeWidth)
	}
}

// FeatureName extracts the display name of a boundary feature at the
// given level.
func FeatureName(f *geojson.Feature, level Level) string {
	switch level {
	case LevelProvince:
		return stringProp(f, provinceNameKeys)
	case LevelDistrict:
		return stringProp(f, districtNameKeys)
	default:
		return stringProp(f, departmentNameKeys)
	}
}

// Region returns a node by its internal id.
func (idx *Index) Region(id string) (*GeoRegion, bool) {
	r, ok := idx.nodesByID[id]
	return r, ok
}

// Department looks up a department by code in any spelling.
func (idx *Index) Department(code string) (*GeoRegion, bool) {
	r, ok := idx.departments[PadCode(code, DepartmentCodeWidth)]
	return r, ok
}

// Province looks up a province by its department and province codes.
func (idx *Index) Province(depCode, provCode string) (*GeoRegion, bool) {
	key := PadCode(depCode, DepartmentCodeWidth) + PadCode(provCode, DepartmentCodeWidth)
	r, ok := idx.provinces[key]
	return r, ok
}

// District looks up a district by ubigeo in any spelling.
func (idx *Index) District(ubigeo string) (*GeoRegion, bool) {
	r, ok := idx.districts[PadCode(ubigeo, UbigeoWidth)]
	return r, ok
}

// Parent returns the parent region, or false at the root level.
func (idx *Index) Parent(r *GeoRegion) (*GeoRegion, bool) {
	if r == nil || r.ParentID == "" {
		return nil, false
	}
	p, ok := idx.nodesByID[r.ParentID]
	return p, ok
}

// Children returns the direct children of a region, unordered.
func (idx *Index) Children(r *GeoRegion) []*GeoRegion {
	if r == nil {
		return nil
	}
	var out []*GeoRegion
	for _, n := range idx.nodesByID {
		if n.ParentID == r.ID {
			out = append(out, n)
		}
	}
	return out
}

// Bounds returns the aggregate bounding box of all department polygons,
// the default viewport for the reset state.
func (idx *Index) Bounds() geometry.BBox {
	return idx.bounds
}

// Counts returns the number of regions per level.
func (idx *Index) Counts() (departments, provinces, districts int) {
	return len(idx.departments), len(idx.provinces), len(idx.districts)
}

func featureBounds(f *geojson.Feature, log zerolog.Logger) (geometry.BBox, bool) {
	box, ok := geometry.BoundsOf(f.Geometry)
	if !ok {
		log.Warn().Msg("feature with degenerate geometry excluded from index")
	}
	return box, ok
}

func stringProp(f *geojson.Feature, keys []string) string {
	for _, k := range keys {
		if v, ok := f.Properties[k]; ok {
			switch val := v.(type) {
			case string:
				if val != "" {
					return val
				}
			case float64:
				return fmt.Sprintf("%.0f", val)
			case int:
				return fmt.Sprintf("%d", val)
			}
		}
	}
	return ""
}
