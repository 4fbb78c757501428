package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"listmyspace/server/internal/models"
)

func (d *Database) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := d.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// Conversation returns up to limit of the most recent messages between a customer and an owner,
// oldest first
func (d *Database) Conversation(ctx context.Context, customerID, ownerID uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	var msgs []models.Message
	err := d.db.WithContext(ctx).
		Where("customer_id = ? AND owner_id = ?", customerID, ownerID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
