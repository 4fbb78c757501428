package models

import (
	"fmt"
	"strings"
	"time"
)

// PropertyKind discriminates the three listing tables. Ids are only unique within a kind.
type PropertyKind string

const (
	KindResidence  PropertyKind = "residence"
	KindCommercial PropertyKind = "commercial"
	KindLand       PropertyKind = "land"
)

// PropertyKinds lists every kind in the order used to break ties between equal timestamps
var PropertyKinds = []PropertyKind{KindResidence, KindCommercial, KindLand}

func ParsePropertyKind(s string) (PropertyKind, error) {
	k := PropertyKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("invalid property type: %q", s)
	}
	return k, nil
}

func (k PropertyKind) Valid() bool {
	switch k {
	case KindResidence, KindCommercial, KindLand:
		return true
	}
	return false
}

// Table returns the variant's table name
func (k PropertyKind) Table() string {
	switch k {
	case KindResidence:
		return "residences"
	case KindCommercial:
		return "commercials"
	case KindLand:
		return "lands"
	}
	return ""
}

// FeatureTable returns the join table linking the variant to features
func (k PropertyKind) FeatureTable() string {
	return string(k) + "_features"
}

// ForeignKey is the column naming this variant in join and image rows
func (k PropertyKind) ForeignKey() string {
	return string(k) + "_id"
}

// Order is the position of the kind in PropertyKinds
func (k PropertyKind) Order() int {
	for i, kind := range PropertyKinds {
		if kind == k {
			return i
		}
	}
	return len(PropertyKinds)
}

// PropertyRef is the typed (kind, id) pair that identifies a listing
type PropertyRef struct {
	Kind PropertyKind `json:"property_type"`
	ID   uint         `json:"property_id"`
}

func (r PropertyRef) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

type AdAction string

const (
	ActionRent AdAction = "Rent"
	ActionBuy  AdAction = "Buy"
)

var AdActions = []string{string(ActionRent), string(ActionBuy)}

var CommercialCategories = []string{
	"Office",
	"Commercial",
	"Industrial",
	"Investment land",
	"Hotel/Guesthouse",
	"Special properties",
	"Other",
}

var LandTypes = []string{
	"Constructions",
	"Agricultural",
	"Forest",
	"Orchard",
	"Meadow",
	"Pasture",
	"Fishpond",
	"Other",
}

var LandCategories = []string{"Intravilan", "Extravilan"}

// MatchEnum returns the canonical spelling of value within allowed, ignoring case
func MatchEnum(value string, allowed []string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return a, true
		}
	}
	return "", false
}

// PropertyBase holds the columns shared by all variants
type PropertyBase struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	AdAction    AdAction  `gorm:"size:8;not null" json:"ad_action"`
	Street      string    `gorm:"size:255;not null" json:"street"`
	PostalCode  string    `gorm:"size:20" json:"postal_code"`
	City        string    `gorm:"size:100;not null;index" json:"city"`
	State       string    `gorm:"size:100" json:"state"`
	Country     string    `gorm:"size:100;not null" json:"country"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Price       float64   `gorm:"not null" json:"price"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Address composes the postal address sent to the geocoder
func (b *PropertyBase) Address() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{b.Street, b.PostalCode, b.City, b.State, b.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Residence struct {
	PropertyBase
	Rooms       int      `gorm:"not null" json:"rooms"`
	SurfaceArea float64  `gorm:"not null" json:"surface_area"`
	LandArea    *float64 `json:"land_area"`

	Features []Feature `gorm:"many2many:residence_features;constraint:OnDelete:CASCADE" json:"features"`
	Images   []Image   `gorm:"foreignKey:ResidenceID;constraint:OnDelete:CASCADE" json:"images"`
}

type Commercial struct {
	PropertyBase
	Category    string  `gorm:"size:32;not null" json:"category"`
	SurfaceArea float64 `gorm:"not null" json:"surface_area"`

	Features []Feature `gorm:"many2many:commercial_features;constraint:OnDelete:CASCADE" json:"features"`
	Images   []Image   `gorm:"foreignKey:CommercialID;constraint:OnDelete:CASCADE" json:"images"`
}

type Land struct {
	PropertyBase
	LandType     string  `gorm:"size:32;not null" json:"land_type"`
	LandCategory string  `gorm:"size:16;not null" json:"land_category"`
	LandArea     float64 `gorm:"not null" json:"land_area"`

	Features []Feature `gorm:"many2many:land_features;constraint:OnDelete:CASCADE" json:"features"`
	Images   []Image   `gorm:"foreignKey:LandID;constraint:OnDelete:CASCADE" json:"images"`
}

func (Residence) TableName() string  { return KindResidence.Table() }
func (Commercial) TableName() string { return KindCommercial.Table() }
func (Land) TableName() string       { return KindLand.Table() }

// Property is the sum type over Residence, Commercial and Land
type Property interface {
	Kind() PropertyKind
	Base() *PropertyBase
	Ref() PropertyRef
	// Areas returns the surface and land area, nil where the variant has no value
	Areas() (surface, land *float64)
	FeatureList() []Feature
	SetFeatures([]Feature)
	ImageList() []Image
	SetImages([]Image)
	// Apply patches the listing and validates variant-specific values
	Apply(PropertyFields) error
}

// NewProperty returns an empty listing of the given kind
func NewProperty(kind PropertyKind) (Property, error) {
	switch kind {
	case KindResidence:
		return &Residence{}, nil
	case KindCommercial:
		return &Commercial{}, nil
	case KindLand:
		return &Land{}, nil
	}
	return nil, fmt.Errorf("invalid property type: %q", kind)
}

func (r *Residence) Kind() PropertyKind          { return KindResidence }
func (r *Residence) Base() *PropertyBase         { return &r.PropertyBase }
func (r *Residence) Ref() PropertyRef            { return PropertyRef{Kind: KindResidence, ID: r.ID} }
func (r *Residence) Areas() (*float64, *float64) { return &r.SurfaceArea, r.LandArea }
func (r *Residence) FeatureList() []Feature      { return r.Features }
func (r *Residence) SetFeatures(f []Feature)     { r.Features = f }
func (r *Residence) ImageList() []Image          { return r.Images }
func (r *Residence) SetImages(i []Image)         { r.Images = i }

func (c *Commercial) Kind() PropertyKind          { return KindCommercial }
func (c *Commercial) Base() *PropertyBase         { return &c.PropertyBase }
func (c *Commercial) Ref() PropertyRef            { return PropertyRef{Kind: KindCommercial, ID: c.ID} }
func (c *Commercial) Areas() (*float64, *float64) { return &c.SurfaceArea, nil }
func (c *Commercial) FeatureList() []Feature      { return c.Features }
func (c *Commercial) SetFeatures(f []Feature)     { c.Features = f }
func (c *Commercial) ImageList() []Image          { return c.Images }
func (c *Commercial) SetImages(i []Image)         { c.Images = i }

func (l *Land) Kind() PropertyKind          { return KindLand }
func (l *Land) Base() *PropertyBase         { return &l.PropertyBase }
func (l *Land) Ref() PropertyRef            { return PropertyRef{Kind: KindLand, ID: l.ID} }
func (l *Land) Areas() (*float64, *float64) { return nil, &l.LandArea }
func (l *Land) FeatureList() []Feature      { return l.Features }
func (l *Land) SetFeatures(f []Feature)     { l.Features = f }
func (l *Land) ImageList() []Image          { return l.Images }
func (l *Land) SetImages(i []Image)         { l.Images = i }

// FeatureNames returns the names of the listing's features
func FeatureNames(p Property) []string {
	features := p.FeatureList()
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = f.Name
	}
	return names
}

// ImageURLs returns the URLs of the listing's images
func ImageURLs(p Property) []string {
	images := p.ImageList()
	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.URL
	}
	return urls
}
