package models

import (
	"time"

	"gorm.io/datatypes"
)

type Review struct {
	ID           uint         `gorm:"primaryKey" json:"review_id"`
	CustomerID   uint         `gorm:"not null;uniqueIndex:idx_review_customer_property" json:"customer_id"`
	PropertyType PropertyKind `gorm:"size:16;not null;uniqueIndex:idx_review_customer_property;index:idx_review_property" json:"property_type"`
	PropertyID   uint         `gorm:"not null;uniqueIndex:idx_review_customer_property;index:idx_review_property" json:"property_id"`
	Rating       int          `gorm:"not null" json:"rating"`
	Comment      string       `gorm:"type:text" json:"comment"`
	CreatedAt    time.Time    `json:"created_at"`
}

type Favorite struct {
	ID           uint         `gorm:"primaryKey" json:"favorite_id"`
	CustomerID   uint         `gorm:"not null;uniqueIndex:idx_favorite_customer_property" json:"customer_id"`
	PropertyType PropertyKind `gorm:"size:16;not null;uniqueIndex:idx_favorite_customer_property" json:"property_type"`
	PropertyID   uint         `gorm:"not null;uniqueIndex:idx_favorite_customer_property" json:"property_id"`
	CreatedAt    time.Time    `json:"created_at"`
}

type NotificationType string

const (
	NotifyNewMessage  NotificationType = "new_message"
	NotifyPriceChange NotificationType = "price_change"
	NotifyNewReview   NotificationType = "new_review"
)

type Notification struct {
	ID           uint             `gorm:"primaryKey" json:"notification_id"`
	UserID       uint             `gorm:"not null;index" json:"user_id"`
	Type         NotificationType `gorm:"size:32;not null" json:"type"`
	Title        string           `gorm:"size:255;not null" json:"title"`
	Message      string           `gorm:"type:text" json:"message"`
	PropertyType *PropertyKind    `gorm:"size:16" json:"property_type,omitempty"`
	PropertyID   *uint            `json:"property_id,omitempty"`
	Data         datatypes.JSON   `json:"data,omitempty"`
	IsRead       bool             `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt    time.Time        `gorm:"index" json:"created_at"`
	ReadAt       *time.Time       `json:"read_at,omitempty"`
}
