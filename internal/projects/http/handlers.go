package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/makerbridge/marketplace-backend/internal/projects"
	"github.com/makerbridge/marketplace-backend/internal/projects/domain"
	"github.com/makerbridge/marketplace-backend/internal/routing"
	"github.com/makerbridge/marketplace-backend/internal/users"
)

// Notifier receives routing/bid transitions for fanout. Implemented by the
// notifications fanout service.
type Notifier interface {
	OnRoutingOrBidChange(ctx context.Context, ch routing.Change)
}

type Handler struct {
	repo     *projects.Repo
	routing  *routing.Repo
	notifier Notifier
}

func NewHandler(repo *projects.Repo, routingRepo *routing.Repo, notifier Notifier) *Handler {
	return &Handler{repo: repo, routing: routingRepo, notifier: notifier}
}

// Register attaches project lifecycle and routing/bid workflow routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:public_id", h.get)
	rg.POST("/:public_id/routing", h.routeVendor)
	rg.POST("/:public_id/bids", h.placeBid)
	rg.PATCH("/:public_id/bids/:vendor_id", h.setBidStatus)
	rg.POST("/:public_id/select", h.selectVendor)
	rg.POST("/:public_id/cancel", h.cancel)
}

func (h *Handler) create(c *gin.Context) {
	if callerRole(c) != users.RoleBusiness {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "code": "not_authorized", "error": "only businesses create projects"})
		return
	}

	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	p, err := h.repo.Create(c.Request.Context(), callerID(c), strings.TrimSpace(req.Title))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func (h *Handler) list(c *gin.Context) {
	var (
		items []domain.Project
		err   error
	)
	switch callerRole(c) {
	case users.RoleAdmin:
		items, err = h.repo.ListAll(c.Request.Context())
	case users.RoleVendor:
		items, err = h.repo.ListRoutedTo(c.Request.Context(), callerID(c))
	default:
		items, err = h.repo.ListForBusiness(c.Request.Context(), callerID(c))
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.repo.Get(c.Request.Context(), c.Param("public_id"))
	if errors.Is(err, projects.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "code": "not_found", "error": "project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

func (h *Handler) routeVendor(c *gin.Context) {
	if callerRole(c) != users.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "code": "not_authorized", "error": "only admins route projects"})
		return
	}

	var req routeReq
	if err := c.ShouldBindJSON(&req); err != nil || req.VendorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "vendorId required"})
		return
	}

	p, err := h.repo.Get(c.Request.Context(), c.Param("public_id"))
	if errors.Is(err, projects.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "code": "not_found", "error": "project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if err := h.routing.RouteVendor(c.Request.Context(), p.PublicID, req.VendorID); err != nil {
		if errors.Is(err, routing.ErrAlreadyRouted) {
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "vendor already routed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	go h.notify(routing.Change{
		Kind:       routing.ChangeRouted,
		ProjectID:  p.PublicID,
		BusinessID: p.BusinessID,
		VendorID:   req.VendorID,
	})

	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

func (h *Handler) placeBid(c *gin.Context) {
	if callerRole(c) != users.RoleVendor {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "code": "not_authorized", "error": "only vendors bid"})
		return
	}

	p, err := h.repo.Get(c.Request.Context(), c.Param("public_id"))
	if errors.Is(err, projects.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "code": "not_found", "error": "project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if err := h.routing.PlaceBid(c.Request.Context(), p.PublicID, callerID(c)); err != nil {
		if errors.Is(err, routing.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "bid already placed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	go h.notify(routing.Change{
		Kind:       routing.ChangeBidPlaced,
		ProjectID:  p.PublicID,
		BusinessID: p.BusinessID,
		VendorID:   callerID(c),
	})

	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

func (h *Handler) setBidStatus(c *gin.Context) {
	var req bidStatusReq
	if err := c.ShouldBindJSON(&req); err != nil || (req.Status != "accepted" && req.Status != "rejected") {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "status must be accepted or rejected"})
		return
	}

	p, err := h.repo.Get(c.Request.Context(), c.Param("public_id"))
	if errors.Is(err, projects.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "code": "not_found", "error": "project not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if callerRole(c) != users.RoleBusiness || callerID(c) != p.BusinessID {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "code": "not_authorized", "error": "only the owning business decides bids"})
		return
	}

	vendorID := c.Param("vendor_id")
	if err := h.routing.SetBidStatus(c.Request.Context(), p.PublicID, vendorID, req.Status); err != nil {
		switch {
		case errors.Is(err, routing.ErrBidNotFound):
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "code": "not_found", "error": "bid not found"})
		case errors.Is(err, routing.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "bid is not in submitted state"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		}
		return
	}

	kind := routing.ChangeBidAccepted
	if req.Status == "rejected" {
		kind = routing.ChangeBidRejected
	}
	go h.notify(routing.Change{
		Kind:       kind,
		ProjectID:  p.PublicID,
		BusinessID: p.BusinessID,
		VendorID:   vendorID,
	})

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) selectVendor(c *gin.Context) {
	var req selectReq
	if err := c.ShouldBindJSON(&req); err != nil || req.VendorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "vendorId required"})
		return
	}

	ok, err := h.repo.SelectVendor(c.Request.Context(), callerID(c), c.Param("public_id"), req.VendorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "code": "not_found", "error": "project not found or not open"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) cancel(c *gin.Context) {
	publicID := c.Param("public_id")

	ok, err := h.repo.Cancel(c.Request.Context(), callerID(c), publicID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "code": "not_found", "error": "project not found or already closed"})
		return
	}

	// Routed vendors lose baseline visibility on cancellation.
	if err := h.routing.ClearProject(c.Request.Context(), publicID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) notify(ch routing.Change) {
	if h.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h.notifier.OnRoutingOrBidChange(ctx, ch)
}
