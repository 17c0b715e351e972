package catalog

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cafe-robusta/backend/internal/models"
	"github.com/cafe-robusta/backend/pkg/response"
)

// Handler exposes read-only catalog proxy endpoints.
type Handler struct {
	client *Client
	logger *zap.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(client *Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{client: client, logger: logger}
}

// workshopView adds the derived seat fields the site renders.
type workshopView struct {
	models.Workshop
	IsFull         bool `json:"is_full"`
	AvailableSeats int  `json:"available_seats"`
}

// ListWorkshops handles GET /workshops?active=true.
func (h *Handler) ListWorkshops(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	workshops, err := h.client.ListWorkshops(c.Request.Context(), activeOnly)
	if err != nil {
		h.logger.Error("list workshops failed", zap.Error(err))
		response.BadGateway(c, models.CodeUpstream, "could not load workshops")
		return
	}
	views := make([]workshopView, 0, len(workshops))
	for _, w := range workshops {
		views = append(views, workshopView{Workshop: w, IsFull: w.IsFull(), AvailableSeats: w.AvailableSeats()})
	}
	response.OK(c, views)
}

// ListCoffee handles GET /coffee?category=.
func (h *Handler) ListCoffee(c *gin.Context) {
	items, err := h.client.ListMenuItems(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.logger.Error("list menu failed", zap.Error(err))
		response.BadGateway(c, models.CodeUpstream, "could not load menu")
		return
	}
	response.OK(c, items)
}

// SiteMedia handles GET /site-media?page=&section= with the fallback
// policy applied by the client.
func (h *Handler) SiteMedia(c *gin.Context) {
	page := c.Query("page")
	if page == "" {
		response.BadRequest(c, models.CodeValidation, "page is required")
		return
	}
	entry, err := h.client.HeroMedia(c.Request.Context(), page, c.Query("section"))
	if err != nil {
		h.logger.Error("site media failed", zap.Error(err), zap.String("page", page))
		response.BadGateway(c, models.CodeUpstream, "could not load media")
		return
	}
	if entry == nil {
		response.NotFound(c, "no media for page")
		return
	}
	response.OK(c, entry)
}
