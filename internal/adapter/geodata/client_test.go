package geodata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapnav/internal/domain/hierarchy"
)

const limaLayer = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"CCDD": "15", "NOMBDEP": "LIMA"},
			"geometry": {"type": "Polygon", "coordinates": [[[-78,-13],[-75,-13],[-75,-10],[-78,-10],[-78,-13]]]}
		}
	]
}`

func TestFetchStaticLayer(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(limaLayer))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, srv.Client(), nil, zerolog.Nop())
	data, err := c.FetchLayer(context.Background(), hierarchy.LevelDepartment)

	require.NoError(t, err)
	assert.Equal(t, "/geo/department.geojson", gotPath)
	require.Len(t, data.Collection.Features, 1)
	assert.Equal(t, 1, data.Meta.FeatureCount)
	assert.Equal(t, "15", hierarchy.FeatureCode(data.Collection.Features[0], hierarchy.LevelDepartment))
}

func TestFetchCampaignLayerCarriesAllowList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/geojson", r.URL.Path)
		assert.Equal(t, "cmp-7", r.URL.Query().Get("campaignId"))
		assert.Equal(t, "district", r.URL.Query().Get("layerType"))
		assert.Equal(t, "1", r.URL.Query().Get("meta"))
		w.Write([]byte(`{
			"geojson": ` + limaLayer + `,
			"meta": {"bbox": [-78,-13,-75,-10], "featureCount": 1, "codes": ["150101","150102"]}
		}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, CampaignID: "cmp-7"}, srv.Client(), nil, zerolog.Nop())
	data, err := c.FetchLayer(context.Background(), hierarchy.LevelDistrict)

	require.NoError(t, err)
	assert.Equal(t, []string{"150101", "150102"}, data.Meta.AllowedCodes)
	assert.Equal(t, -78.0, data.Meta.BBox[0])
}

func TestFetchLayerErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL}, srv.Client(), nil, zerolog.Nop())
	_, err := c.FetchLayer(context.Background(), hierarchy.LevelProvince)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestCheckTileStatuses(t *testing.T) {
	status := http.StatusOK
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.WriteHeader(status)
	}))
	defer srv.Close()

	tc := NewTileChecker(TileCheckerConfig{BaseURL: srv.URL, Version: "9"}, srv.Client(), nil, zerolog.Nop())
	tile := maptile.New(18, 34, 6)

	ok, err := tc.CheckTile(context.Background(), hierarchy.LevelDepartment, tile)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/6/18/34", gotPath)
	assert.Equal(t, "layer=department&v=9", gotQuery)

	status = http.StatusNoContent
	ok, err = tc.CheckTile(context.Background(), hierarchy.LevelDepartment, tile)
	require.NoError(t, err)
	assert.True(t, ok, "204 means the tile set exists with an empty tile")

	status = http.StatusNotFound
	ok, err = tc.CheckTile(context.Background(), hierarchy.LevelDepartment, tile)
	require.NoError(t, err)
	assert.False(t, ok)
}
