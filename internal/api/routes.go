package api

import (
	"github.com/gin-gonic/gin"

	"listmyspace/server/internal/models"
)

// NewRouter builds the engine with the middleware chain and every route
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(h.logger), CORS(allowedOrigins))
	router.Static(h.images.BaseURL(), h.images.Dir())

	SetupRoutes(router, h)
	return router
}

func SetupRoutes(router *gin.Engine, h *Handler) {
	authed := h.RequireAuth()
	admin := RequireRole(models.RoleAdmin)
	customer := RequireRole(models.RoleCustomer)
	lister := RequireRole(models.RoleOwner, models.RoleAdmin)
	participant := RequireRole(models.RoleOwner, models.RoleCustomer)

	api := router.Group("/api")
	{
		api.GET("/health", h.Health)
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)

		api.GET("/properties", h.SearchProperties)
		api.GET("/properties/map", h.PropertiesMap)
		api.GET("/properties/:type/:id", h.GetProperty)
		api.POST("/properties", authed, lister, h.CreateProperty)
		api.PUT("/properties/:type/:id", authed, lister, h.UpdateProperty)
		api.DELETE("/delete_property", authed, lister, h.DeleteProperty)

		api.GET("/properties/:type/:id/reviews", h.ListReviews)
		api.POST("/properties/:type/:id/reviews", authed, customer, h.CreateReview)

		api.GET("/favorites", authed, customer, h.ListFavorites)
		api.POST("/favorites", authed, customer, h.AddFavorite)
		api.DELETE("/favorites", authed, customer, h.RemoveFavorite)

		api.GET("/notifications", authed, h.ListNotifications)
		api.PUT("/notifications/:id/read", authed, h.MarkNotificationRead)

		api.GET("/messages/:user_id", authed, participant, h.MessageHistory)
		api.GET("/chat/:user_id", authed, participant, h.Chat)

		api.GET("/get_all_users", authed, admin, h.GetAllUsers)
		api.DELETE("/delete_user/:id", authed, admin, h.DeleteUser)
		api.PUT("/users/:id/status", authed, admin, h.SetUserStatus)
	}
}
