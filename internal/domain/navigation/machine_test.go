// internal/domain/navigation/machine_test.go

package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapnav/internal/domain/hierarchy"
)

func mustApply(t *testing.T, s State, tr Transition) State {
	t.Helper()
	next, err := Apply(s, tr)
	require.NoError(t, err)
	return next
}

func TestSelectDepartmentThenBackRestoresInitialState(t *testing.T) {
	initial := Initial()

	selected := mustApply(t, initial, SelectDepartment{Code: "15", Name: "LIMA"})
	assert.Equal(t, hierarchy.LevelProvince, selected.Level)
	assert.Equal(t, "15", selected.Selection.Department)
	assert.Equal(t, 1, selected.Depth())

	back := mustApply(t, selected, GoBack{})
	assert.Equal(t, initial, back, "goBack after one selection must restore the exact pre-selection state")
}

func TestFullDrillDown(t *testing.T) {
	s := Initial()
	s = mustApply(t, s, SelectDepartment{Code: "15", Name: "LIMA"})
	s = mustApply(t, s, SelectProvince{DepartmentCode: "15", ProvinceCode: "1", Name: "LIMA"})

	assert.Equal(t, hierarchy.LevelDistrict, s.Level)
	assert.Equal(t, "1501", s.Selection.Province)
	assert.Equal(t, 2, s.Depth())

	s = mustApply(t, s, SelectDistrict{Ubigeo: "150101", Name: "LIMA"})
	assert.Equal(t, hierarchy.LevelDistrict, s.Level, "district selection is terminal, level stays")
	assert.Equal(t, "150101", s.Selection.District)
	assert.Equal(t, 3, s.Depth())

	// Re-selecting a sibling district replaces the terminal crumb instead
	// of growing the trail.
	s = mustApply(t, s, SelectDistrict{Ubigeo: "150102", Name: "ANCON"})
	assert.Equal(t, "150102", s.Selection.District)
	assert.Equal(t, 3, s.Depth())
}

func TestBreadcrumbLengthTracksDepth(t *testing.T) {
	s := Initial()
	assert.Equal(t, 0, s.Depth())

	s = mustApply(t, s, SelectDepartment{Code: "08", Name: "CUSCO"})
	s = mustApply(t, s, SelectProvince{DepartmentCode: "08", ProvinceCode: "01", Name: "CUSCO"})
	s = mustApply(t, s, SelectDistrict{Ubigeo: "080101", Name: "CUSCO"})
	assert.Equal(t, 3, s.Depth())

	s = mustApply(t, s, GoBack{})
	assert.Equal(t, 2, s.Depth())
	assert.Empty(t, s.Selection.District, "selection deeper than the new level is cleared")
	assert.Equal(t, "0801", s.Selection.Province)

	s = mustApply(t, s, GoBack{})
	assert.Equal(t, 1, s.Depth())
	assert.Empty(t, s.Selection.Province)
	assert.Equal(t, hierarchy.LevelProvince, s.Level)
}

func TestInvalidTransitions(t *testing.T) {
	s := Initial()

	_, err := Apply(s, SelectProvince{DepartmentCode: "15", ProvinceCode: "01"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Apply(s, SelectDistrict{Ubigeo: "150101"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	deep := mustApply(t, s, SelectDepartment{Code: "15"})
	_, err = Apply(deep, SelectDepartment{Code: "08"})
	assert.ErrorIs(t, err, ErrInvalidTransition, "department selection is only valid at the root level")
}

func TestSectorToggle(t *testing.T) {
	s := Initial()
	s = mustApply(t, s, SelectDepartment{Code: "15"})
	s = mustApply(t, s, SelectProvince{DepartmentCode: "15", ProvinceCode: "01"})

	// No district selected yet: sector selection is not available.
	_, err := Apply(s, ToggleSector{Sector: "A-3"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	s = mustApply(t, s, SelectDistrict{Ubigeo: "150101"})
	s = mustApply(t, s, ToggleSector{Sector: "A-3"})
	assert.Equal(t, "A-3", s.Selection.Sector)

	// Toggling the same sector deselects it.
	s = mustApply(t, s, ToggleSector{Sector: "A-3"})
	assert.Empty(t, s.Selection.Sector)

	// Selecting another district clears any selected sector.
	s = mustApply(t, s, ToggleSector{Sector: "B-1"})
	s = mustApply(t, s, SelectDistrict{Ubigeo: "150102"})
	assert.Empty(t, s.Selection.Sector)
}

func TestUnpaddedCodesNormalize(t *testing.T) {
	s := mustApply(t, Initial(), SelectDepartment{Code: "5", Name: "AYACUCHO"})
	assert.Equal(t, "05", s.Selection.Department)
	assert.Equal(t, "05", s.Breadcrumb[0].Code)
}

func TestEmptyClick(t *testing.T) {
	s := Initial()
	assert.IsType(t, Reset{}, EmptyClick(s), "empty click at the root resets")

	s = mustApply(t, s, SelectDepartment{Code: "15"})
	assert.IsType(t, GoBack{}, EmptyClick(s), "empty click with a selection goes back one level")
}

func TestReset(t *testing.T) {
	s := Initial()
	s = mustApply(t, s, SelectDepartment{Code: "15"})
	s = mustApply(t, s, SelectProvince{DepartmentCode: "15", ProvinceCode: "01"})

	s = mustApply(t, s, Reset{})
	assert.Equal(t, Initial(), s)
}
