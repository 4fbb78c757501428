package models

import "time"

// Message is a chat line between one customer and one owner. SenderType carries the direction.
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"message_id"`
	CustomerID *uint     `gorm:"index" json:"customer_id"`
	OwnerID    *uint     `gorm:"index" json:"owner_id"`
	SenderType Role      `gorm:"size:16;not null" json:"sender_type"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
}
