package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const districtsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "1", "fa": "منطقه ۱"},
      "geometry": {"type": "Polygon", "coordinates": [[[51.0, 35.0], [52.0, 35.0], [52.0, 36.0], [51.0, 36.0], [51.0, 35.0]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": 22},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[53.0, 35.0], [54.0, 35.0], [54.0, 36.0], [53.0, 36.0], [53.0, 35.0]]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "point"},
      "geometry": {"type": "Point", "coordinates": [51.5, 35.5]}
    }
  ]
}`

func TestParseDistricts(t *testing.T) {
	d, err := ParseDistricts([]byte(districtsJSON), "")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
}

func TestLocate(t *testing.T) {
	d, err := ParseDistricts([]byte(districtsJSON), DefaultProperty)
	require.NoError(t, err)

	label, ok := d.Locate(35.5, 51.5)
	assert.True(t, ok)
	assert.Equal(t, "1", label)

	label, ok = d.Locate(35.5, 53.5)
	assert.True(t, ok)
	assert.Equal(t, "22", label)

	_, ok = d.Locate(10, 10)
	assert.False(t, ok)
}

func TestLocateCustomProperty(t *testing.T) {
	d, err := ParseDistricts([]byte(districtsJSON), "fa")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())

	label, ok := d.Locate(35.5, 51.5)
	assert.True(t, ok)
	assert.Equal(t, "منطقه ۱", label)
}

func TestLocateNilDistricts(t *testing.T) {
	var d *Districts
	_, ok := d.Locate(35.5, 51.5)
	assert.False(t, ok)
	assert.Equal(t, 0, d.Len())
}

func TestParseDistrictsInvalid(t *testing.T) {
	_, err := ParseDistricts([]byte("not json"), DefaultProperty)
	assert.Error(t, err)

	_, err = ParseDistricts([]byte(`{"type":"FeatureCollection","features":[]}`), DefaultProperty)
	assert.Error(t, err)
}

func TestLoadDistrictsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "districts.geojson")
	require.NoError(t, os.WriteFile(path, []byte(districtsJSON), 0644))

	d, err := LoadDistricts(context.Background(), http.DefaultClient, path, "")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
}

func TestLoadDistrictsFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write([]byte(districtsJSON))
	}))
	defer server.Close()

	d, err := LoadDistricts(context.Background(), server.Client(), server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
}
