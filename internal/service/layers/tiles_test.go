package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapnav/internal/domain/geometry"
	"mapnav/internal/domain/hierarchy"
)

func TestClampZoomStaysInBand(t *testing.T) {
	tests := []struct {
		level hierarchy.Level
		zoom  float64
		want  int
	}{
		{hierarchy.LevelDepartment, 2, 4},
		{hierarchy.LevelDepartment, 5.7, 6},
		{hierarchy.LevelDepartment, 12, 7},
		{hierarchy.LevelProvince, 4, 6},
		{hierarchy.LevelProvince, 8, 8},
		{hierarchy.LevelDistrict, 15, 12},
		{hierarchy.LevelDistrict, 9.2, 9},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampZoom(tt.zoom, tt.level), "level %s zoom %v", tt.level, tt.zoom)
	}
}

func TestCandidateTilesContainCenter(t *testing.T) {
	vp := limaViewport()
	tiles := CandidateTiles(vp, hierarchy.LevelDepartment)
	require.NotEmpty(t, tiles)

	// Lima at zoom 6 sits in tile 18/34.
	found := false
	for _, tile := range tiles {
		assert.Equal(t, uint32(6), uint32(tile.Z))
		if tile.X == 18 && tile.Y == 34 {
			found = true
		}
	}
	assert.True(t, found, "center tile missing from candidates")
}

func TestCandidateTilesDeduplicated(t *testing.T) {
	tiles := CandidateTiles(limaViewport(), hierarchy.LevelProvince)
	seen := make(map[[3]uint32]bool)
	for _, tile := range tiles {
		key := [3]uint32{tile.X, tile.Y, uint32(tile.Z)}
		assert.False(t, seen[key], "duplicate tile %v", key)
		seen[key] = true
	}
}

func TestCandidateTilesRespectViewportBounds(t *testing.T) {
	vp := limaViewport()
	// A one-tile-wide viewport around the center tile keeps every
	// candidate inside it.
	vp.Bounds = geometry.NewBBox(-78.75, -16.6, -73.125, -11.2)
	for _, tile := range CandidateTiles(vp, hierarchy.LevelDepartment) {
		assert.GreaterOrEqual(t, tile.X, uint32(18))
		assert.LessOrEqual(t, tile.X, uint32(19))
	}
}
