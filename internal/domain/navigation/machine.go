// internal/domain/navigation/machine.go

// Package navigation holds the drill-down state of the administrative map
// as one explicit value. All mutation goes through Apply, which takes the
// current state and a transition and returns the next state, so the
// machine is testable without any rendering concern.
package navigation

import (
	"errors"

	"mapnav/internal/domain/hierarchy"
)

// ErrInvalidTransition is returned when a transition is not legal at the
// current level, e.g. selecting a province while still at the department
// level.
var ErrInvalidTransition = errors.New("navigation: invalid transition for current level")

// Selection holds the codes and display names selected at each level.
// Codes are stored normalized (department 2 digits, province 4, ubigeo 6).
type Selection struct {
	Department     string `json:"departmentCode,omitempty"`
	Province       string `json:"provinceCode,omitempty"`
	District       string `json:"districtCode,omitempty"`
	Sector         string `json:"sector,omitempty"`
	DepartmentName string `json:"departmentName,omitempty"`
	ProvinceName   string `json:"provinceName,omitempty"`
	DistrictName   string `json:"districtName,omitempty"`
}

// Crumb is one entry of the breadcrumb trail.
type Crumb struct {
	Level hierarchy.Level `json:"level"`
	Code  string          `json:"code"`
	Name  string          `json:"name"`
}

// State is the complete navigation state. The breadcrumb length always
// equals the selection depth: zero at the root, one after selecting a
// department, and so on up to three for a terminal district selection.
type State struct {
	Level      hierarchy.Level `json:"level"`
	Selection  Selection       `json:"selection"`
	Breadcrumb []Crumb         `json:"breadcrumb"`
}

// Initial returns the root state: department level, nothing selected.
func Initial() State {
	return State{Level: hierarchy.LevelDepartment}
}

// Depth returns the current selection depth, 0 through 3.
func (s State) Depth() int { return len(s.Breadcrumb) }

// AtRoot reports whether the state equals the initial state.
func (s State) AtRoot() bool {
	return s.Level == hierarchy.LevelDepartment && len(s.Breadcrumb) == 0
}

// Transition is a request to change the navigation state. The concrete
// types below are the only implementations.
type Transition interface {
	transition()
}

// SelectDepartment drills from the department level into a department.
type SelectDepartment struct {
	Code string
	Name string
}

// SelectProvince drills from the province level into a province.
type SelectProvince struct {
	DepartmentCode string
	ProvinceCode   string
	Name           string
}

// SelectDistrict marks a terminal district selection; the level stays at
// district because no deeper level exists.
type SelectDistrict struct {
	Ubigeo string
	Name   string
}

// ToggleSector selects a non-hierarchical sector overlay at the district
// level; toggling the currently selected sector deselects it.
type ToggleSector struct {
	Sector string
}

// GoBack pops one breadcrumb entry and re-derives the selection.
type GoBack struct{}

// Reset returns to the initial state.
type Reset struct{}

func (SelectDepartment) transition() {}
func (SelectProvince) transition()   {}
func (SelectDistrict) transition()   {}
func (ToggleSector) transition()     {}
func (GoBack) transition()           {}
func (Reset) transition()            {}

// Apply returns the state after applying t to s. The input state is never
// mutated. Illegal transitions return ErrInvalidTransition along with the
// unchanged state.
func Apply(s State, t Transition) (State, error) {
	switch tr := t.(type) {
	case SelectDepartment:
		if s.Level != hierarchy.LevelDepartment {
			return s, ErrInvalidTransition
		}
		code := hierarchy.PadCode(tr.Code, hierarchy.DepartmentCodeWidth)
		next := State{
			Level: hierarchy.LevelProvince,
			Selection: Selection{
				Department:     code,
				DepartmentName: tr.Name,
			},
			Breadcrumb: appendCrumb(s.Breadcrumb, Crumb{hierarchy.LevelDepartment, code, tr.Name}),
		}
		return next, nil

	case SelectProvince:
		if s.Level != hierarchy.LevelProvince {
			return s, ErrInvalidTransition
		}
		key := hierarchy.PadCode(tr.DepartmentCode, hierarchy.DepartmentCodeWidth) +
			hierarchy.PadCode(tr.ProvinceCode, hierarchy.DepartmentCodeWidth)
		next := s
		next.Level = hierarchy.LevelDistrict
		next.Selection.Province = key
		next.Selection.ProvinceName = tr.Name
		next.Selection.District = ""
		next.Selection.DistrictName = ""
		next.Selection.Sector = ""
		next.Breadcrumb = appendCrumb(s.Breadcrumb, Crumb{hierarchy.LevelProvince, key, tr.Name})
		return next, nil

	case SelectDistrict:
		if s.Level != hierarchy.LevelDistrict {
			return s, ErrInvalidTransition
		}
		ubigeo := hierarchy.PadCode(tr.Ubigeo, hierarchy.UbigeoWidth)
		next := s
		next.Selection.District = ubigeo
		next.Selection.DistrictName = tr.Name
		next.Selection.Sector = ""
		if cur := currentCrumbLevel(s.Breadcrumb); cur == hierarchy.LevelDistrict {
			// Re-selecting a district replaces the terminal crumb.
			next.Breadcrumb = appendCrumb(s.Breadcrumb[:len(s.Breadcrumb)-1], Crumb{hierarchy.LevelDistrict, ubigeo, tr.Name})
		} else {
			next.Breadcrumb = appendCrumb(s.Breadcrumb, Crumb{hierarchy.LevelDistrict, ubigeo, tr.Name})
		}
		return next, nil

	case ToggleSector:
		if s.Level != hierarchy.LevelDistrict || s.Selection.District == "" {
			return s, ErrInvalidTransition
		}
		next := s
		if s.Selection.Sector == tr.Sector {
			next.Selection.Sector = ""
		} else {
			next.Selection.Sector = tr.Sector
		}
		return next, nil

	case GoBack:
		if len(s.Breadcrumb) == 0 {
			return Initial(), nil
		}
		return derive(s.Breadcrumb[:len(s.Breadcrumb)-1]), nil

	case Reset:
		return Initial(), nil
	}
	return s, ErrInvalidTransition
}

// EmptyClick resolves a click on empty space: one implicit GoBack, or
// Reset when already at the root.
func EmptyClick(s State) Transition {
	if s.AtRoot() {
		return Reset{}
	}
	return GoBack{}
}

// derive rebuilds the full state from a breadcrumb trail. The trail is
// the single source of truth for selected codes when walking back.
func derive(trail []Crumb) State {
	s := Initial()
	for _, c := range trail {
		switch c.Level {
		case hierarchy.LevelDepartment:
			s.Level = hierarchy.LevelProvince
			s.Selection.Department = c.Code
			s.Selection.DepartmentName = c.Name
		case hierarchy.LevelProvince:
			s.Level = hierarchy.LevelDistrict
			s.Selection.Province = c.Code
			s.Selection.ProvinceName = c.Name
		case hierarchy.LevelDistrict:
			s.Level = hierarchy.LevelDistrict
			s.Selection.District = c.Code
			s.Selection.DistrictName = c.Name
		}
	}
	s.Breadcrumb = append([]Crumb(nil), trail...)
	if len(s.Breadcrumb) == 0 {
		s.Breadcrumb = nil
	}
	return s
}

func appendCrumb(trail []Crumb, c Crumb) []Crumb {
	out := make([]Crumb, 0, len(trail)+1)
	out = append(out, trail...)
	return append(out, c)
}

func currentCrumbLevel(trail []Crumb) hierarchy.Level {
	if len(trail) == 0 {
		return ""
	}
	return trail[len(trail)-1].Level
}
