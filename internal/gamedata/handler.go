package gamedata

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves the decorative catalogs. Upstream failures surface as empty
// lists, never as errors.
type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) Worlds(c *gin.Context) {
	worlds := h.client.Worlds(c.Request.Context())
	if worlds == nil {
		worlds = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"worlds": worlds})
}

func (h *Handler) Bosses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": orEmpty(h.client.Bosses(c.Request.Context()))})
}

func (h *Handler) Creatures(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": orEmpty(h.client.Creatures(c.Request.Context()))})
}

func orEmpty(entries []CatalogEntry) []CatalogEntry {
	if entries == nil {
		return []CatalogEntry{}
	}
	return entries
}
