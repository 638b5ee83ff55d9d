package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/recipekeeper/internal/handlers"
)

func registerCacheRoutes(api *gin.RouterGroup, handler *handlers.CacheHandler) {
	group := api.Group("/cache")
	group.GET("/stats", handler.Stats)
	group.DELETE("", handler.Clear)
	group.DELETE("/:key", handler.Delete)
}
