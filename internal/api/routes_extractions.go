package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/recipekeeper/internal/handlers"
)

func registerExtractionRoutes(api *gin.RouterGroup, handler *handlers.ExtractionsHandler) {
	api.GET("/extractions", handler.List)
}
