package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tempero-labs/dispenser-backend/internal/requestdata"
	"github.com/tempero-labs/dispenser-backend/internal/services"
)

type RecipeHandler struct {
	recipes services.RecipeService
	catalog services.CatalogService
}

func NewRecipeHandler(recipes services.RecipeService, catalog services.CatalogService) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, catalog: catalog}
}

// POST /api/recipes
func (h *RecipeHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req services.CreateRecipeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body", err)
		return
	}
	recipe, err := h.recipes.Create(c.Request.Context(), rd.UserID, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"recipe": recipe})
}

// GET /api/recipes
func (h *RecipeHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	recipes, err := h.recipes.ListForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"recipes": recipes})
}

// GET /api/recipes/:id
func (h *RecipeHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	recipeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "invalid_recipe_id", err)
		return
	}
	recipe, err := h.recipes.GetForUser(c.Request.Context(), rd.UserID, recipeID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"recipe": recipe})
}

// DELETE /api/recipes/:id
func (h *RecipeHandler) Delete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	recipeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "invalid_recipe_id", err)
		return
	}
	if err := h.recipes.DeleteForUser(c.Request.Context(), rd.UserID, recipeID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// GET /api/catalog/spices
func (h *RecipeHandler) Catalog(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	labels, err := h.catalog.LabelsForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"labels": labels})
}
