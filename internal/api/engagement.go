package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"listmyspace/server/internal/database"
	"listmyspace/server/internal/models"
)

type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

func (h *Handler) ListReviews(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	exists, err := h.db.PropertyExists(c.Request.Context(), ref)
	if err != nil {
		h.internalError(c, err, "Failed to check property")
		return
	}
	if !exists {
		notFound(c, "Property not found")
		return
	}

	reviews, err := h.db.ListReviews(c.Request.Context(), ref)
	if err != nil {
		h.internalError(c, err, "Failed to list reviews")
		return
	}

	var average float64
	for _, r := range reviews {
		average += float64(r.Rating)
	}
	if len(reviews) > 0 {
		average /= float64(len(reviews))
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews":        reviews,
		"average_rating": average,
		"total_reviews":  len(reviews),
	})
}

func (h *Handler) CreateReview(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, bindingMessage(err))
		return
	}

	review := &models.Review{
		CustomerID:   *principal(c).CustomerID,
		PropertyType: ref.Kind,
		PropertyID:   ref.ID,
		Rating:       req.Rating,
		Comment:      strings.TrimSpace(req.Comment),
	}
	if err := h.db.CreateReview(c.Request.Context(), review); err != nil {
		switch {
		case isNotFound(err):
			notFound(c, "Property not found")
		case errors.Is(err, database.ErrDuplicate):
			badRequest(c, "You have already reviewed this property")
		default:
			h.internalError(c, err, "Failed to create review")
		}
		return
	}

	h.notifyReview(c.Request.Context(), ref, review)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Review added successfully",
		"review":  review,
	})
}

// notifyReview tells the listing's owner about a new review
func (h *Handler) notifyReview(ctx context.Context, ref models.PropertyRef, review *models.Review) {
	log := h.logger.WithField("property", ref.String())

	ownerID, err := h.db.OwnerOf(ctx, ref)
	if err != nil {
		log.WithError(err).Warn("Failed to look up listing owner for review")
		return
	}
	owner, err := h.db.GetOwner(ctx, ownerID)
	if err != nil {
		log.WithError(err).Warn("Failed to load listing owner for review")
		return
	}

	data, _ := json.Marshal(map[string]interface{}{
		"review_id": review.ID,
		"rating":    review.Rating,
	})
	kind, id := ref.Kind, ref.ID
	err = h.notifier.Notify(&models.Notification{
		UserID:       owner.UserID,
		Type:         models.NotifyNewReview,
		Title:        "New review",
		Message:      fmt.Sprintf("Your listing received a %d star review", review.Rating),
		PropertyType: &kind,
		PropertyID:   &id,
		Data:         datatypes.JSON(data),
	})
	if err != nil {
		log.WithError(err).Warn("Failed to queue review notification")
	}
}

func (h *Handler) ListFavorites(c *gin.Context) {
	favorites, err := h.db.ListFavorites(c.Request.Context(), *principal(c).CustomerID)
	if err != nil {
		h.internalError(c, err, "Failed to list favorites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favorites})
}

func (h *Handler) AddFavorite(c *gin.Context) {
	var req PropertyRefRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, bindingMessage(err))
		return
	}

	fav, err := h.db.AddFavorite(c.Request.Context(), *principal(c).CustomerID, req.Ref())
	if err != nil {
		switch {
		case isNotFound(err):
			notFound(c, "Property not found")
		case errors.Is(err, database.ErrDuplicate):
			badRequest(c, "Property is already a favorite")
		default:
			h.internalError(c, err, "Failed to add favorite")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Favorite added successfully",
		"favorite": fav,
	})
}

func (h *Handler) RemoveFavorite(c *gin.Context) {
	var req PropertyRefRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, bindingMessage(err))
		return
	}

	if err := h.db.RemoveFavorite(c.Request.Context(), *principal(c).CustomerID, req.Ref()); err != nil {
		if isNotFound(err) {
			notFound(c, "Favorite not found")
			return
		}
		h.internalError(c, err, "Failed to remove favorite")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Favorite removed successfully"})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"

	notifications, err := h.db.ListNotifications(c.Request.Context(), principal(c).UserID, unreadOnly)
	if err != nil {
		h.internalError(c, err, "Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.db.MarkNotificationRead(c.Request.Context(), principal(c).UserID, id); err != nil {
		if isNotFound(err) {
			notFound(c, "Notification not found")
			return
		}
		h.internalError(c, err, "Failed to update notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
