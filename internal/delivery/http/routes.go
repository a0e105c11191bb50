package http

import (
	"github.com/gin-gonic/gin"
	"github.com/jumboapi/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.GET("/status", handler.AuthStatus)
			auth.POST("/login", handler.Login)
		}

		basket := v1.Group("/basket")
		{
			basket.GET("", handler.GetBasket)
			basket.POST("/add", handler.AddToBasket)
			basket.POST("/remove", handler.RemoveFromBasket)
			basket.PATCH("/items/:lineId", handler.UpdateBasketItem)
		}

		lists := v1.Group("/lists")
		{
			lists.GET("", handler.GetLists)
			lists.GET("/:listId", handler.GetList)
		}

		orders := v1.Group("/orders")
		{
			orders.GET("", handler.GetOrders)
			orders.GET("/:orderId", handler.GetOrderDetails)
		}

		// Wildcard: receipt transaction IDs contain slashes
		v1.GET("/receipts/*transactionId", handler.GetReceipt)

		products := v1.Group("/products")
		{
			products.GET("/search", handler.SearchProduct)
			products.POST("/barcode", handler.LookupBarcode)
		}

		settings := v1.Group("/settings")
		{
			settings.GET("", handler.GetSettings)
			settings.PUT("", handler.UpdateSettings)
			settings.PUT("/credentials", handler.UpdateCredentials)
			settings.POST("/clear-cache", handler.ClearMatchCache)
		}
	}

	return router
}
