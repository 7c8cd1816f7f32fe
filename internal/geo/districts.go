// Package geo labels coordinates with the district whose boundary contains them.
package geo

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"zephuris/divarworker/helpers"
	"zephuris/divarworker/logger"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// DefaultProperty is the feature property used as district label
const DefaultProperty = "name"

type district struct {
	label    string
	bound    orb.Bound
	geometry orb.Geometry
}

// Districts is an immutable set of district boundaries
type Districts struct {
	districts []district
}

// LoadDistricts reads a GeoJSON FeatureCollection from an http(s) URL or a
// local file and indexes its Polygon and MultiPolygon features.
func LoadDistricts(ctx context.Context, client *http.Client, source, property string) (*Districts, error) {
	if property == "" {
		property = DefaultProperty
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = helpers.FetchSimply(ctx, client, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, scrapeerrors.NewNetwork("geo", "failed to load district dataset", err)
	}

	d, err := ParseDistricts(data, property)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded %d district boundaries from %s", d.Len(), source)
	return d, nil
}

// ParseDistricts builds a district set from GeoJSON bytes
func ParseDistricts(data []byte, property string) (*Districts, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, scrapeerrors.NewParsing("geo", "invalid GeoJSON feature collection", err)
	}

	d := &Districts{}
	for _, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}

		label, ok := propertyLabel(f.Properties, property)
		if !ok {
			continue
		}

		d.districts = append(d.districts, district{
			label:    label,
			bound:    f.Geometry.Bound(),
			geometry: f.Geometry,
		})
	}

	if len(d.districts) == 0 {
		return nil, scrapeerrors.NewParsing("geo", fmt.Sprintf("no polygon features with property %q", property), nil)
	}
	return d, nil
}

// Locate returns the label of the first district containing the point
func (d *Districts) Locate(lat, lng float64) (string, bool) {
	if d == nil {
		return "", false
	}

	point := orb.Point{lng, lat}
	for _, dist := range d.districts {
		if !dist.bound.Contains(point) {
			continue
		}
		switch g := dist.geometry.(type) {
		case orb.Polygon:
			if planar.PolygonContains(g, point) {
				return dist.label, true
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(g, point) {
				return dist.label, true
			}
		}
	}
	return "", false
}

// Len returns the number of indexed districts
func (d *Districts) Len() int {
	if d == nil {
		return 0
	}
	return len(d.districts)
}

func propertyLabel(props geojson.Properties, key string) (string, bool) {
	v, ok := props[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, val != ""
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}
