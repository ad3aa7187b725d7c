package api

import (
	"errors"
	"net/http"

	"health-entitlement-engine/internal/usecase/commands"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerationHandler exposes the manual generation retry used when a paid
// order is missing its entitlements.
type GenerationHandler struct {
	generation commands.GenerationCommands
}

func NewGenerationHandler(generation commands.GenerationCommands) *GenerationHandler {
	return &GenerationHandler{generation: generation}
}

// @Summary Generate entitlements for an order
// @Description Issue the entitlements of a paid order; a no-op if they already exist
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /orders/{id}/entitlements [post]
func (h *GenerationHandler) GenerateForOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID format"})
		return
	}

	result, err := h.generation.GenerateForOrder(c.Request.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, commands.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, commands.ErrOrderNotPaid):
			c.JSON(http.StatusConflict, gin.H{"error": "Order is not paid"})
		case errors.Is(err, commands.ErrPackageNotFound):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Package template not found"})
		case errors.Is(err, commands.ErrEmptyPackage):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Package template has no items"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orderId":        result.OrderID,
		"createdCount":   result.CreatedCount,
		"alreadyExisted": result.AlreadyExisted,
	})
}
