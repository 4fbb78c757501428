package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"listmyspace/server/internal/chat"
)

// maxFrameBytes bounds one inbound WebSocket frame
const maxFrameBytes = 4*chat.MaxMessageLength + 512

// Chat upgrades the caller's connection and relays frames until it closes
func (h *Handler) Chat(c *gin.Context) {
	id, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	user := currentUser(c)
	if user == nil || user.ID != id {
		forbidden(c)
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied
		h.logger.WithError(err).WithField("user_id", id).Warn("WebSocket upgrade failed")
		return
	}
	ws.SetReadLimit(maxFrameBytes)

	if err := h.relay.Serve(c.Request.Context(), user, chat.NewWebSocketConn(ws)); err != nil {
		h.logger.WithError(err).WithField("user_id", id).Warn("Chat connection ended with error")
	}
}

// MessageHistory returns the stored conversation between the caller and another user
func (h *Handler) MessageHistory(c *gin.Context) {
	otherID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "Invalid limit")
			return
		}
		limit = n
	}

	other, err := h.db.GetUserByID(c.Request.Context(), otherID)
	if err != nil {
		if isNotFound(err) {
			notFound(c, "User not found")
			return
		}
		h.internalError(c, err, "Failed to load user")
		return
	}

	caller := currentUser(c)
	var customerID, ownerID uint
	switch {
	case caller.Customer != nil && other.Owner != nil:
		customerID, ownerID = caller.Customer.ID, other.Owner.ID
	case caller.Owner != nil && other.Customer != nil:
		customerID, ownerID = other.Customer.ID, caller.Owner.ID
	default:
		badRequest(c, "Messages can only be exchanged between an owner and a customer")
		return
	}

	messages, err := h.db.Conversation(c.Request.Context(), customerID, ownerID, limit)
	if err != nil {
		h.internalError(c, err, "Failed to load conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
