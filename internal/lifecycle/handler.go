package lifecycle

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes the sweep over HTTP: a per-owner endpoint for sessions
// cleaning up their own rooms, and an internal endpoint for operators.
type Handler struct {
	sweeper *Sweeper
}

func NewHandler(sweeper *Sweeper) *Handler {
	return &Handler{sweeper: sweeper}
}

func (h *Handler) SweepMine(c *gin.Context) {
	ownerID := uuid.MustParse(c.GetString("account_id"))
	deleted := h.sweeper.SweepOwner(c.Request.Context(), ownerID)
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) SweepAll(c *gin.Context) {
	deleted := h.sweeper.Sweep(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
