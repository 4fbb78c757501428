package auth

import "listmyspace/server/internal/models"

// Principal is the authenticated caller of a request
type Principal struct {
	UserID     uint
	Username   string
	Role       models.Role
	OwnerID    *uint
	CustomerID *uint
}

// NewPrincipal builds the principal of a loaded user
func NewPrincipal(user *models.User) Principal {
	p := Principal{UserID: user.ID, Username: user.Username, Role: user.Role}
	if user.Owner != nil {
		id := user.Owner.ID
		p.OwnerID = &id
	}
	if user.Customer != nil {
		id := user.Customer.ID
		p.CustomerID = &id
	}
	return p
}

func (p Principal) HasRole(roles ...models.Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Owns reports whether the principal is the owner with ownerID
func (p Principal) Owns(ownerID uint) bool {
	return p.OwnerID != nil && *p.OwnerID == ownerID
}
