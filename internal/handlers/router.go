package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Health backs /healthz when set.
	Health func(ctx context.Context) error
}

func NewRouter(h *APIHandler, log *zap.Logger, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(log), AccessLog(), ErrorHandlingMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	router.POST("/auth/login", h.Login)

	api := router.Group("/")
	api.Use(AuthRequired(h.userService))
	{
		api.POST("/auth/logout", h.Logout)
		api.GET("/auth/me", h.Me)
		api.GET("/capabilities", h.Capabilities)
		api.GET("/library/props", h.SearchProps)

		api.GET("/orders", h.ListOrders)
		api.POST("/orders", h.CreateOrder)
		api.GET("/orders/stats", h.OrderStats)
		api.GET("/orders/:id", h.GetOrder)
		api.PATCH("/orders/:id", h.UpdateOrder)
		api.DELETE("/orders/:id", h.DeleteOrder)

		api.POST("/orders/:id/products", h.AddProduct)
		api.PATCH("/orders/:id/products/:productId/status", h.ChangeProductStatus)
		api.DELETE("/orders/:id/products/:productId", h.DeleteProduct)

		api.POST("/orders/:id/files", h.UploadOrderFile)
		api.DELETE("/orders/:id/files/:fileId", h.DeleteOrderFile)
		api.POST("/orders/:id/files/:fileId/approve", h.ApproveOrderFile)
		api.POST("/orders/:id/files/:fileId/reject", h.RejectOrderFile)
		api.POST("/orders/:id/files/:fileId/comments", h.CommentOnOrderFile)

		api.POST("/orders/:id/products/:productId/files", h.UploadProductFile)
		api.DELETE("/orders/:id/products/:productId/files/:fileId", h.DeleteProductFile)
		api.POST("/orders/:id/products/:productId/files/:fileId/approve", h.ApproveProductFile)
		api.POST("/orders/:id/products/:productId/files/:fileId/reject", h.RejectProductFile)
		api.POST("/orders/:id/products/:productId/files/:fileId/comments", h.CommentOnProductFile)
	}

	return router
}
