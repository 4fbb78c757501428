package models

import (
	"fmt"
	"strings"
	"time"
)

// Role determines which profile a user owns and which routes it may call
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOwner    Role = "owner"
	RoleCustomer Role = "customer"
)

// ParseRole accepts any casing of a known role
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleOwner:
		return RoleOwner, nil
	case RoleCustomer:
		return RoleCustomer, nil
	default:
		return "", fmt.Errorf("invalid role: %q", s)
	}
}

// CanSelfRegister reports whether the role may be created through the public register endpoint
func (r Role) CanSelfRegister() bool {
	return r == RoleOwner || r == RoleCustomer
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"user_id"`
	Username     string    `gorm:"size:100;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	Role         Role      `gorm:"size:16;not null" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`

	// At most one of these is set, depending on Role
	Owner    *Owner    `gorm:"constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	Customer *Customer `gorm:"constraint:OnDelete:CASCADE" json:"customer,omitempty"`
}

type Owner struct {
	ID                  uint      `gorm:"primaryKey" json:"owner_id"`
	UserID              uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Name                string    `gorm:"size:100;not null" json:"name"`
	Phone               string    `gorm:"size:15;not null" json:"phone"`
	Email               string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	CompanyName         *string   `gorm:"size:255" json:"company_name,omitempty"`
	AccountCreationDate time.Time `gorm:"not null" json:"account_creation_date"`
}

type Customer struct {
	ID                  uint      `gorm:"primaryKey" json:"customer_id"`
	UserID              uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Name                string    `gorm:"size:100;not null" json:"name"`
	Phone               string    `gorm:"size:15;not null" json:"phone"`
	Email               string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	AccountCreationDate time.Time `gorm:"not null" json:"account_creation_date"`
}
