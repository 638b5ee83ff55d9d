package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/recipekeeper/internal/handlers"
)

func registerRecipeRoutes(api *gin.RouterGroup, handler *handlers.RecipeHandler) {
	api.POST("/extract-recipe", handler.Extract)
}
