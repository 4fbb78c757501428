package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"listmyspace/server/internal/models"
)

func propertyExists(tx *gorm.DB, ref models.PropertyRef) error {
	if !ref.Kind.Valid() {
		return ErrNotFound
	}
	var count int64
	if err := tx.Table(ref.Kind.Table()).Where("id = ?", ref.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check %s: %w", ref, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateReview stores a review; a customer reviews a listing at most once
func (d *Database) CreateReview(ctx context.Context, review *models.Review) error {
	if review.Rating < 1 || review.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", review.Rating)
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ref := models.PropertyRef{Kind: review.PropertyType, ID: review.PropertyID}
		if err := propertyExists(tx, ref); err != nil {
			return err
		}
		return translateError(tx.Create(review).Error)
	})
}

func (d *Database) ListReviews(ctx context.Context, ref models.PropertyRef) ([]models.Review, error) {
	var reviews []models.Review
	err := d.db.WithContext(ctx).
		Where("property_type = ? AND property_id = ?", ref.Kind, ref.ID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

func (d *Database) AddFavorite(ctx context.Context, customerID uint, ref models.PropertyRef) (*models.Favorite, error) {
	fav := &models.Favorite{CustomerID: customerID, PropertyType: ref.Kind, PropertyID: ref.ID}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := propertyExists(tx, ref); err != nil {
			return err
		}
		return translateError(tx.Create(fav).Error)
	})
	if err != nil {
		return nil, err
	}
	return fav, nil
}

func (d *Database) RemoveFavorite(ctx context.Context, customerID uint, ref models.PropertyRef) error {
	result := d.db.WithContext(ctx).
		Where("customer_id = ? AND property_type = ? AND property_id = ?", customerID, ref.Kind, ref.ID).
		Delete(&models.Favorite{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove favorite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) ListFavorites(ctx context.Context, customerID uint) ([]models.Favorite, error) {
	var favs []models.Favorite
	err := d.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&favs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return favs, nil
}

// FavoritedBy returns the user ids of the customers who favorited a listing
func (d *Database) FavoritedBy(ctx context.Context, ref models.PropertyRef) ([]uint, error) {
	var userIDs []uint
	err := d.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Joins("JOIN customers ON customers.id = favorites.customer_id").
		Where("favorites.property_type = ? AND favorites.property_id = ?", ref.Kind, ref.ID).
		Order("customers.user_id").
		Pluck("customers.user_id", &userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favoriting customers: %w", err)
	}
	return userIDs, nil
}

func (d *Database) ListNotifications(ctx context.Context, userID uint, unreadOnly bool) ([]models.Notification, error) {
	query := d.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Order("id DESC").Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead flags one of the user's notifications as read
func (d *Database) MarkNotificationRead(ctx context.Context, userID, id uint) error {
	now := time.Now().UTC()
	result := d.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneNotifications deletes read notifications created before cutoff
func (d *Database) PruneNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	result := d.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff.UTC()).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}
