package models

import (
	"errors"
	"fmt"
	"strings"
)

// PropertyFields is a partial listing; nil fields are left unchanged by Apply
type PropertyFields struct {
	Title       *string
	Description *string
	AdAction    *string
	Street      *string
	PostalCode  *string
	City        *string
	State       *string
	Country     *string
	Price       *float64

	Rooms        *int
	SurfaceArea  *float64
	LandArea     *float64
	Category     *string
	LandType     *string
	LandCategory *string
}

// AddressChanged reports whether applying f would change the geocoded address
func (f PropertyFields) AddressChanged() bool {
	return f.Street != nil || f.PostalCode != nil || f.City != nil || f.State != nil || f.Country != nil
}

func (b *PropertyBase) apply(f PropertyFields) error {
	if f.Title != nil {
		b.Title = strings.TrimSpace(*f.Title)
	}
	if f.Description != nil {
		b.Description = *f.Description
	}
	if f.AdAction != nil {
		action, ok := MatchEnum(*f.AdAction, AdActions)
		if !ok {
			return fmt.Errorf("invalid ad_action: %q", *f.AdAction)
		}
		b.AdAction = AdAction(action)
	}
	if f.Street != nil {
		b.Street = strings.TrimSpace(*f.Street)
	}
	if f.PostalCode != nil {
		b.PostalCode = strings.TrimSpace(*f.PostalCode)
	}
	if f.City != nil {
		b.City = strings.TrimSpace(*f.City)
	}
	if f.State != nil {
		b.State = strings.TrimSpace(*f.State)
	}
	if f.Country != nil {
		b.Country = strings.TrimSpace(*f.Country)
	}
	if f.Price != nil {
		if *f.Price < 0 {
			return errors.New("price must not be negative")
		}
		b.Price = *f.Price
	}
	return nil
}

// Validate checks the fields every listing needs before it is stored
func (b *PropertyBase) Validate() error {
	switch {
	case b.Title == "":
		return errors.New("title is required")
	case b.AdAction == "":
		return errors.New("ad_action is required")
	case b.Street == "" || b.City == "" || b.Country == "":
		return errors.New("street, city and country are required")
	}
	return nil
}

func (r *Residence) Apply(f PropertyFields) error {
	if err := r.PropertyBase.apply(f); err != nil {
		return err
	}
	if f.Rooms != nil {
		if *f.Rooms < 0 {
			return errors.New("rooms must not be negative")
		}
		r.Rooms = *f.Rooms
	}
	if f.SurfaceArea != nil {
		r.SurfaceArea = *f.SurfaceArea
	}
	if f.LandArea != nil {
		area := *f.LandArea
		r.LandArea = &area
	}
	return nil
}

func (c *Commercial) Apply(f PropertyFields) error {
	if err := c.PropertyBase.apply(f); err != nil {
		return err
	}
	if f.Category != nil {
		category, ok := MatchEnum(*f.Category, CommercialCategories)
		if !ok {
			return fmt.Errorf("invalid commercial category: %q", *f.Category)
		}
		c.Category = category
	}
	if f.SurfaceArea != nil {
		c.SurfaceArea = *f.SurfaceArea
	}
	if c.Category == "" {
		return errors.New("category is required")
	}
	return nil
}

func (l *Land) Apply(f PropertyFields) error {
	if err := l.PropertyBase.apply(f); err != nil {
		return err
	}
	if f.LandType != nil {
		landType, ok := MatchEnum(*f.LandType, LandTypes)
		if !ok {
			return fmt.Errorf("invalid land type: %q", *f.LandType)
		}
		l.LandType = landType
	}
	if f.LandCategory != nil {
		category, ok := MatchEnum(*f.LandCategory, LandCategories)
		if !ok {
			return fmt.Errorf("invalid land category: %q", *f.LandCategory)
		}
		l.LandCategory = category
	}
	if f.LandArea != nil {
		l.LandArea = *f.LandArea
	}
	if l.LandType == "" || l.LandCategory == "" {
		return errors.New("land_type and land_category are required")
	}
	return nil
}
