package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"listmyspace/server/internal/models"
)

// PropertyUpdate carries the association changes of a listing update.
// Field changes are applied to the listing itself before calling UpdateProperty.
type PropertyUpdate struct {
	ReplaceFeatures bool
	Features        []string
	AddImages       []string
}

// ensureFeatures returns the rows for names, creating the ones that do not exist yet
func ensureFeatures(tx *gorm.DB, names []string) ([]models.Feature, error) {
	normalized := models.NormalizeFeatureNames(names)
	features := make([]models.Feature, 0, len(normalized))
	for _, name := range normalized {
		var f models.Feature
		if err := tx.Where(models.Feature{Name: name}).FirstOrCreate(&f).Error; err != nil {
			return nil, fmt.Errorf("failed to store feature %q: %w", name, err)
		}
		features = append(features, f)
	}
	return features, nil
}

func imageFor(ref models.PropertyRef, url string) models.Image {
	id := ref.ID
	img := models.Image{URL: url}
	switch ref.Kind {
	case models.KindResidence:
		img.ResidenceID = &id
	case models.KindCommercial:
		img.CommercialID = &id
	case models.KindLand:
		img.LandID = &id
	}
	return img
}

// CreateProperty stores a new listing together with its features and image rows
func (d *Database) CreateProperty(ctx context.Context, p models.Property, featureNames, imageURLs []string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		features, err := ensureFeatures(tx, featureNames)
		if err != nil {
			return err
		}
		p.SetFeatures(features)

		images := make([]models.Image, len(imageURLs))
		for i, url := range imageURLs {
			images[i] = models.Image{URL: url}
		}
		p.SetImages(images)

		// features already exist; only the join rows and images are written here
		if err := tx.Omit("Features.*").Create(p).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", p.Kind(), translateError(err))
		}
		return nil
	})
}

// GetProperty loads a listing with its features and images
func (d *Database) GetProperty(ctx context.Context, ref models.PropertyRef) (models.Property, error) {
	p, err := models.NewProperty(ref.Kind)
	if err != nil {
		return nil, err
	}

	err = d.db.WithContext(ctx).
		Preload("Features", func(db *gorm.DB) *gorm.DB { return db.Order("features.name") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("images.id") }).
		First(p, ref.ID).Error
	if err != nil {
		return nil, translateError(err)
	}
	return p, nil
}

// OwnerOf returns the owner id of a listing
func (d *Database) OwnerOf(ctx context.Context, ref models.PropertyRef) (uint, error) {
	if !ref.Kind.Valid() {
		return 0, fmt.Errorf("invalid property type: %q", ref.Kind)
	}
	var owners []uint
	if err := d.db.WithContext(ctx).Table(ref.Kind.Table()).Where("id = ?", ref.ID).Pluck("owner_id", &owners).Error; err != nil {
		return 0, fmt.Errorf("failed to look up owner: %w", err)
	}
	if len(owners) == 0 {
		return 0, ErrNotFound
	}
	return owners[0], nil
}

func (d *Database) PropertyExists(ctx context.Context, ref models.PropertyRef) (bool, error) {
	err := propertyExists(d.db.WithContext(ctx), ref)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// UpdateProperty saves a patched listing, optionally replacing its features and adding images
func (d *Database) UpdateProperty(ctx context.Context, p models.Property, update PropertyUpdate) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(p).Error; err != nil {
			return fmt.Errorf("failed to update %s: %w", p.Ref(), translateError(err))
		}

		if update.ReplaceFeatures {
			features, err := ensureFeatures(tx, update.Features)
			if err != nil {
				return err
			}
			assoc := tx.Model(p).Association("Features")
			if len(features) == 0 {
				err = assoc.Clear()
			} else {
				err = assoc.Replace(features)
			}
			if err != nil {
				return fmt.Errorf("failed to replace features: %w", err)
			}
			p.SetFeatures(features)
		}

		if len(update.AddImages) > 0 {
			images := p.ImageList()
			for _, url := range update.AddImages {
				img := imageFor(p.Ref(), url)
				if err := tx.Create(&img).Error; err != nil {
					return fmt.Errorf("failed to add image: %w", err)
				}
				images = append(images, img)
			}
			p.SetImages(images)
		}
		return nil
	})
}

// DeleteProperty removes a listing and its dependents.
// It returns the URLs of the removed images.
func (d *Database) DeleteProperty(ctx context.Context, ref models.PropertyRef) ([]string, error) {
	var urls []string
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := propertyExists(tx, ref); err != nil {
			return err
		}

		removed, err := deleteListings(tx, ref.Kind, []uint{ref.ID})
		if err != nil {
			return err
		}
		urls = removed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// deleteListings removes listings of one kind, children first
func deleteListings(tx *gorm.DB, kind models.PropertyKind, ids []uint) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var urls []string
	if err := tx.Model(&models.Image{}).Where(kind.ForeignKey()+" IN ?", ids).Pluck("url", &urls).Error; err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s IN ?", kind.FeatureTable(), kind.ForeignKey())
	if err := tx.Exec(stmt, ids).Error; err != nil {
		return nil, fmt.Errorf("failed to delete feature links: %w", err)
	}
	if err := tx.Where(kind.ForeignKey()+" IN ?", ids).Delete(&models.Image{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete images: %w", err)
	}

	for _, model := range []interface{}{&models.Review{}, &models.Favorite{}, &models.Notification{}} {
		if err := tx.Where("property_type = ? AND property_id IN ?", kind, ids).Delete(model).Error; err != nil {
			return nil, fmt.Errorf("failed to delete %s references: %w", kind, err)
		}
	}

	p, err := models.NewProperty(kind)
	if err != nil {
		return nil, err
	}
	if err := tx.Where("id IN ?", ids).Delete(p).Error; err != nil {
		return nil, fmt.Errorf("failed to delete %s listings: %w", kind, err)
	}
	return urls, nil
}
