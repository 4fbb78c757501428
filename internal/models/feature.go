package models

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Feature is a free-form tag shared across all listing kinds
type Feature struct {
	ID   uint   `gorm:"primaryKey" json:"-"`
	Name string `gorm:"size:100;not null;uniqueIndex" json:"name"`
}

// MarshalText lets a feature list render as plain names
func (f Feature) MarshalText() ([]byte, error) {
	return []byte(f.Name), nil
}

var featureFolder = cases.Fold()

// NormalizeFeatureName case-folds and trims a tag so "Pool" and " pool" are one feature
func NormalizeFeatureName(name string) string {
	return featureFolder.String(strings.Join(strings.Fields(name), " "))
}

// NormalizeFeatureNames normalizes, drops blanks and deduplicates while keeping order
func NormalizeFeatureNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range names {
		for _, part := range strings.Split(raw, ",") {
			name := NormalizeFeatureName(part)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Image belongs to exactly one listing; only the matching variant column is set
type Image struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	URL          string    `gorm:"size:512;not null" json:"url"`
	ResidenceID  *uint     `gorm:"index" json:"-"`
	CommercialID *uint     `gorm:"index" json:"-"`
	LandID       *uint     `gorm:"index" json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// MarshalText lets an image list render as plain URLs
func (i Image) MarshalText() ([]byte, error) {
	return []byte(i.URL), nil
}

// Ref returns the listing the image is attached to
func (i Image) Ref() (PropertyRef, bool) {
	switch {
	case i.ResidenceID != nil:
		return PropertyRef{Kind: KindResidence, ID: *i.ResidenceID}, true
	case i.CommercialID != nil:
		return PropertyRef{Kind: KindCommercial, ID: *i.CommercialID}, true
	case i.LandID != nil:
		return PropertyRef{Kind: KindLand, ID: *i.LandID}, true
	}
	return PropertyRef{}, false
}
