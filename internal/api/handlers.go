package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"listmyspace/server/internal/auth"
	"listmyspace/server/internal/chat"
	"listmyspace/server/internal/database"
	"listmyspace/server/internal/geocoding"
	"listmyspace/server/internal/models"
	"listmyspace/server/internal/search"
	"listmyspace/server/internal/storage"
)

// DefaultMaxImages is the per-listing image limit when none is configured
const DefaultMaxImages = 10

// Notifier queues notifications for background persistence
type Notifier interface {
	Push(batch []*models.Notification) error
	Notify(n *models.Notification) error
}

// Dependencies are the collaborators of the HTTP handlers
type Dependencies struct {
	DB       *database.Database
	Tokens   *auth.TokenIssuer
	Locator  geocoding.Locator
	Images   *storage.LocalStore
	Relay    *chat.Relay
	Notifier Notifier
	Logger   *logrus.Logger

	// MaxImages bounds the images attached to one listing
	MaxImages int
	// AllowedOrigins is checked on WebSocket handshakes; "*" allows any
	AllowedOrigins []string
}

type Handler struct {
	db        *database.Database
	engine    *search.Engine
	tokens    *auth.TokenIssuer
	locator   geocoding.Locator
	images    *storage.LocalStore
	relay     *chat.Relay
	notifier  Notifier
	logger    *logrus.Logger
	maxImages int
	upgrader  websocket.Upgrader
}

func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	maxImages := deps.MaxImages
	if maxImages <= 0 {
		maxImages = DefaultMaxImages
	}

	return &Handler{
		db:        deps.DB,
		engine:    search.NewEngine(deps.DB.DB(), logger),
		tokens:    deps.Tokens,
		locator:   deps.Locator,
		images:    deps.Images,
		relay:     deps.Relay,
		notifier:  deps.Notifier,
		logger:    logger,
		maxImages: maxImages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(deps.AllowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// internalError logs err and replies 500 with its text
func (h *Handler) internalError(c *gin.Context, err error, message string) {
	h.logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error(message)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{"error": message})
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "Access forbidden"})
}

// parseID reads a positive numeric path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// parseRef reads the :type and :id path parameters
func parseRef(c *gin.Context) (models.PropertyRef, bool) {
	kind, err := models.ParsePropertyKind(c.Param("type"))
	if err != nil {
		badRequest(c, "Invalid property type")
		return models.PropertyRef{}, false
	}
	id, ok := parseID(c, "id")
	if !ok {
		return models.PropertyRef{}, false
	}
	return models.PropertyRef{Kind: kind, ID: id}, true
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.WithError(err).Error("Database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// isNotFound reports whether err is the store's not-found signal
func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
