package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/makerbridge/marketplace-backend/internal/auth"
	"github.com/makerbridge/marketplace-backend/internal/notifications/domain"
	"github.com/makerbridge/marketplace-backend/internal/notifications/repository"
)

type Handler struct {
	repo *repository.NotificationRepo
}

func NewHandler(repo *repository.NotificationRepo) *Handler {
	return &Handler{repo: repo}
}

// Register attaches the notification surface. Only the recipient may read
// or mutate their records; clients poll this at 30s when no push transport
// is active.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.PATCH("/:id/read", h.markRead)
	rg.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"

	items, err := h.repo.ListForUser(auth.UserID(c), unreadOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "notifications": items})
}

func (h *Handler) markRead(c *gin.Context) {
	err := h.repo.MarkRead(auth.UserID(c), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "code": "not_found", "error": "notification not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) delete(c *gin.Context) {
	err := h.repo.Delete(auth.UserID(c), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "code": "not_found", "error": "notification not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
