package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// MaxRadiusKm caps proximity searches
const MaxRadiusKm = 500.0

// Point builds an orb point from latitude and longitude. orb stores longitude first.
func Point(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

// ValidatePoint rejects coordinates outside the WGS84 range
func ValidatePoint(p orb.Point) error {
	if math.IsNaN(p.Lat()) || p.Lat() < -90 || p.Lat() > 90 {
		return fmt.Errorf("latitude out of range: %v", p.Lat())
	}
	if math.IsNaN(p.Lon()) || p.Lon() < -180 || p.Lon() > 180 {
		return fmt.Errorf("longitude out of range: %v", p.Lon())
	}
	return nil
}

// BoundAround returns the box that contains every point within radiusKm of center
func BoundAround(center orb.Point, radiusKm float64) orb.Bound {
	return geo.NewBoundAroundPoint(center, radiusKm*1000)
}

// DistanceKm is the great-circle distance between a and b
func DistanceKm(a, b orb.Point) float64 {
	return geo.Distance(a, b) / 1000
}

// Marker is one listing placed on a map
type Marker struct {
	Location   orb.Point
	Properties map[string]interface{}
}

// FeatureCollection renders markers as GeoJSON points
func FeatureCollection(markers []Marker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range markers {
		feature := geojson.NewFeature(m.Location)
		for k, v := range m.Properties {
			feature.Properties[k] = v
		}
		fc.Append(feature)
	}
	return fc
}
