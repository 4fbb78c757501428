package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"listmyspace/server/internal/models"
)

// NewAccount carries a validated registration
type NewAccount struct {
	Username     string
	PasswordHash string
	Role         models.Role
	Name         string
	Phone        string
	Email        string
	CompanyName  *string
}

// CreateAccount stores a user and its owner or customer profile in one transaction.
// Emails are unique across owners and customers together.
func (d *Database) CreateAccount(ctx context.Context, acc NewAccount) (*models.User, error) {
	if !acc.Role.CanSelfRegister() {
		return nil, fmt.Errorf("role %q cannot be registered", acc.Role)
	}

	email := strings.ToLower(strings.TrimSpace(acc.Email))
	user := &models.User{
		Username:     acc.Username,
		PasswordHash: acc.PasswordHash,
		Role:         acc.Role,
		IsActive:     true,
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := usernameAvailable(tx, acc.Username); err != nil {
			return err
		}
		if err := emailAvailable(tx, email); err != nil {
			return err
		}

		if err := tx.Create(user).Error; err != nil {
			return translateError(err)
		}

		today := time.Now().UTC().Truncate(24 * time.Hour)
		switch acc.Role {
		case models.RoleOwner:
			user.Owner = &models.Owner{
				UserID:              user.ID,
				Name:                acc.Name,
				Phone:               acc.Phone,
				Email:               email,
				CompanyName:         acc.CompanyName,
				AccountCreationDate: today,
			}
			return translateError(tx.Create(user.Owner).Error)
		default:
			user.Customer = &models.Customer{
				UserID:              user.ID,
				Name:                acc.Name,
				Phone:               acc.Phone,
				Email:               email,
				AccountCreationDate: today,
			}
			return translateError(tx.Create(user.Customer).Error)
		}
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateAdmin stores a user with the admin role and no profile
func (d *Database) CreateAdmin(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := usernameAvailable(tx, username); err != nil {
			return err
		}
		return translateError(tx.Create(user).Error)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func usernameAvailable(tx *gorm.DB, username string) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: username %q is already taken", ErrDuplicate, username)
	}
	return nil
}

func emailAvailable(tx *gorm.DB, email string) error {
	for _, model := range []interface{}{&models.Owner{}, &models.Customer{}} {
		var count int64
		if err := tx.Model(model).Where("LOWER(email) = ?", email).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: email %q is already registered", ErrDuplicate, email)
		}
	}
	return nil
}

func (d *Database) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Preload("Owner").
		Preload("Customer").
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (d *Database) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Preload("Owner").
		Preload("Customer").
		First(&user, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (d *Database) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := d.db.WithContext(ctx).
		Preload("Owner").
		Preload("Customer").
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// SetUserActive enables or disables logins for a user
func (d *Database) SetUserActive(ctx context.Context, id uint, active bool) error {
	result := d.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *Database) OwnerExists(ctx context.Context, ownerID uint) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&models.Owner{}).Where("id = ?", ownerID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check owner: %w", err)
	}
	return count > 0, nil
}

func (d *Database) GetOwner(ctx context.Context, ownerID uint) (*models.Owner, error) {
	var owner models.Owner
	if err := d.db.WithContext(ctx).First(&owner, ownerID).Error; err != nil {
		return nil, translateError(err)
	}
	return &owner, nil
}

// DeleteUser removes a user and everything hanging off its profile, children first.
// It returns the URLs of images whose rows were removed so the files can be deleted.
func (d *Database) DeleteUser(ctx context.Context, id uint) ([]string, error) {
	var removedImages []string

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Preload("Owner").Preload("Customer").First(&user, id).Error; err != nil {
			return translateError(err)
		}

		if user.Owner != nil {
			urls, err := deleteOwner(tx, user.Owner.ID)
			if err != nil {
				return err
			}
			removedImages = urls
		}

		if user.Customer != nil {
			if err := deleteCustomer(tx, user.Customer.ID); err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
			return fmt.Errorf("failed to delete notifications: %w", err)
		}
		if err := tx.Delete(&models.User{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removedImages, nil
}

func deleteOwner(tx *gorm.DB, ownerID uint) ([]string, error) {
	var removed []string
	for _, kind := range models.PropertyKinds {
		var ids []uint
		if err := tx.Table(kind.Table()).Where("owner_id = ?", ownerID).Pluck("id", &ids).Error; err != nil {
			return nil, fmt.Errorf("failed to list %s listings: %w", kind, err)
		}
		urls, err := deleteListings(tx, kind, ids)
		if err != nil {
			return nil, err
		}
		removed = append(removed, urls...)
	}

	if err := tx.Where("owner_id = ?", ownerID).Delete(&models.Message{}).Error; err != nil {
		return nil, fmt.Errorf("failed to delete owner messages: %w", err)
	}
	if err := tx.Delete(&models.Owner{}, ownerID).Error; err != nil {
		return nil, fmt.Errorf("failed to delete owner: %w", err)
	}
	return removed, nil
}

func deleteCustomer(tx *gorm.DB, customerID uint) error {
	for _, model := range []interface{}{&models.Message{}, &models.Review{}, &models.Favorite{}} {
		if err := tx.Where("customer_id = ?", customerID).Delete(model).Error; err != nil {
			return fmt.Errorf("failed to delete customer records: %w", err)
		}
	}
	if err := tx.Delete(&models.Customer{}, customerID).Error; err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return nil
}
