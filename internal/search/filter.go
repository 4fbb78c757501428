package search

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"listmyspace/server/internal/geometry"
	"listmyspace/server/internal/models"
)

// PageSize is the fixed number of listings per page
const PageSize = 10

// MaxPage is the largest page whose offset fits in an int; larger pages are clamped to it
const MaxPage = math.MaxInt/PageSize + 1

// DefaultRadiusKm applies when lat and lon are given without radius_km
const DefaultRadiusKm = 10.0

var ErrInvalidFilter = errors.New("invalid filter")

// Range is an inclusive numeric bound; nil ends are open
type Range struct {
	Min *float64
	Max *float64
}

func (r Range) empty() bool {
	return r.Min == nil && r.Max == nil
}

// Near restricts a search to the box around Center
type Near struct {
	Center   orb.Point
	RadiusKm float64
}

// Filter is a parsed listing search. A nil Kind searches every variant.
type Filter struct {
	Kind        *models.PropertyKind
	AdAction    string
	City        string
	State       string
	Price       Range
	SurfaceArea Range
	LandArea    Range
	Features    []string
	Near        *Near
	Page        int
}

// Kinds returns the variants in scope
func (f Filter) Kinds() []models.PropertyKind {
	if f.Kind != nil {
		return []models.PropertyKind{*f.Kind}
	}
	return models.PropertyKinds
}

// offset is negative when Page is outside [1, MaxPage]
func (f Filter) offset() int {
	if f.Page < 1 || f.Page > MaxPage {
		return -1
	}
	return (f.Page - 1) * PageSize
}

// ParseFilter reads a filter from query parameters. Unknown parameters are ignored.
func ParseFilter(values url.Values) (Filter, error) {
	f := Filter{
		AdAction: strings.TrimSpace(values.Get("ad_action")),
		City:     strings.TrimSpace(values.Get("city")),
		State:    strings.TrimSpace(values.Get("state")),
		Features: models.NormalizeFeatureNames(values["features"]),
		Page:     1,
	}

	if raw := values.Get("property_type"); raw != "" {
		kind, err := models.ParsePropertyKind(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		f.Kind = &kind
	}

	var err error
	if f.Price, err = parseRange(values, "min_price", "max_price"); err != nil {
		return Filter{}, err
	}
	if f.SurfaceArea, err = parseRange(values, "min_surface_area", "max_surface_area"); err != nil {
		return Filter{}, err
	}
	if f.LandArea, err = parseRange(values, "min_land_area", "max_land_area"); err != nil {
		return Filter{}, err
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: page must be an integer", ErrInvalidFilter)
		}
		if page > 1 {
			f.Page = min(page, MaxPage)
		}
	}

	if f.Near, err = parseNear(values); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func parseRange(values url.Values, minKey, maxKey string) (Range, error) {
	var r Range
	var err error
	if r.Min, err = parseFloat(values, minKey); err != nil {
		return Range{}, err
	}
	if r.Max, err = parseFloat(values, maxKey); err != nil {
		return Range{}, err
	}
	return r, nil
}

func parseFloat(values url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s must be a number", ErrInvalidFilter, key)
	}
	return &v, nil
}

func parseNear(values url.Values) (*Near, error) {
	lat, err := parseFloat(values, "lat")
	if err != nil {
		return nil, err
	}
	lon, err := parseFloat(values, "lon")
	if err != nil {
		return nil, err
	}
	radius, err := parseFloat(values, "radius_km")
	if err != nil {
		return nil, err
	}

	if lat == nil && lon == nil {
		if radius != nil {
			return nil, fmt.Errorf("%w: radius_km requires lat and lon", ErrInvalidFilter)
		}
		return nil, nil
	}
	if lat == nil || lon == nil {
		return nil, fmt.Errorf("%w: lat and lon must be given together", ErrInvalidFilter)
	}

	near := &Near{Center: geometry.Point(*lat, *lon), RadiusKm: DefaultRadiusKm}
	if err := geometry.ValidatePoint(near.Center); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if radius != nil {
		if *radius <= 0 || *radius > geometry.MaxRadiusKm {
			return nil, fmt.Errorf("%w: radius_km must be in (0, %v]", ErrInvalidFilter, geometry.MaxRadiusKm)
		}
		near.RadiusKm = *radius
	}
	return near, nil
}
