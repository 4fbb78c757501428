package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"listmyspace/server/internal/auth"
	"listmyspace/server/internal/database"
	"listmyspace/server/internal/models"
)

type RegisterRequest struct {
	Username    string  `json:"username" binding:"required,max=100"`
	Password    string  `json:"password" binding:"required"`
	Role        string  `json:"role" binding:"required,selfrole"`
	Name        string  `json:"name" binding:"required,max=100"`
	Phone       string  `json:"phone" binding:"required,max=15"`
	Email       string  `json:"email" binding:"required,email,max=255"`
	CompanyName *string `json:"company_name" binding:"omitempty,max=255"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UserStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindingMessage(err))
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.db.CreateAccount(c.Request.Context(), database.NewAccount{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
		Role:         role,
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		Email:        req.Email,
		CompanyName:  req.CompanyName,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			badRequest(c, err.Error())
			return
		}
		h.internalError(c, err, "Failed to register user")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User registered")

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user_id": user.ID,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Username and password are required")
		return
	}

	user, err := h.db.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if isNotFound(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.internalError(c, err, "Failed to load user")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			h.logger.WithError(err).WithField("user_id", user.ID).Warn("Stored password hash is unreadable")
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is disabled"})
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		h.internalError(c, err, "Failed to issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"user_id": user.ID,
		"role":    user.Role,
	})
}

func (h *Handler) GetAllUsers(c *gin.Context) {
	users, err := h.db.ListUsers(c.Request.Context())
	if err != nil {
		h.internalError(c, err, "Failed to list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// DeleteUser removes a user with its profile, listings and their images
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if principal(c).UserID == id {
		badRequest(c, "Administrators cannot delete their own account")
		return
	}

	urls, err := h.db.DeleteUser(c.Request.Context(), id)
	if err != nil {
		if isNotFound(err) {
			notFound(c, "User not found")
			return
		}
		h.internalError(c, err, "Failed to delete user")
		return
	}

	h.images.DeleteAll(urls)
	if conn, ok := h.relay.Sessions().Lookup(id); ok {
		conn.Close()
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": id,
		"images":  len(urls),
	}).Info("User deleted")

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// SetUserStatus enables or disables a user's logins
func (h *Handler) SetUserStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindingMessage(err))
		return
	}

	if err := h.db.SetUserActive(c.Request.Context(), id, *req.IsActive); err != nil {
		if isNotFound(err) {
			notFound(c, "User not found")
			return
		}
		h.internalError(c, err, "Failed to update user")
		return
	}

	if !*req.IsActive {
		if conn, ok := h.relay.Sessions().Lookup(id); ok {
			conn.Close()
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "is_active": *req.IsActive})
}
