package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/makerbridge/marketplace-backend/internal/auth"
	"github.com/makerbridge/marketplace-backend/internal/messaging/domain"
	"github.com/makerbridge/marketplace-backend/internal/messaging/repository"
	"github.com/makerbridge/marketplace-backend/internal/projects"
)

type sendReq struct {
	MessageText string `json:"messageText"`
	ImageURL    string `json:"imageUrl"`
	VendorID    string `json:"vendorId"`
}

func actorFrom(c *gin.Context) domain.Actor {
	return domain.Actor{ID: auth.UserID(c), Role: auth.UserRole(c)}
}

// respondErr maps core errors onto the wire taxonomy. Denial reasons are
// surfaced to the caller, never silently downgraded.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "code": "not_authorized", "error": "no access to this thread"})
	case errors.Is(err, domain.ErrAmbiguousScope):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "code": "ambiguous_scope", "error": "vendorId required when multiple vendor threads exist"})
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, projects.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "code": "not_found", "error": "project or thread not found"})
	case errors.Is(err, domain.ErrInvalidMessage), errors.Is(err, repository.ErrBadCursor):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "code": "invalid_request", "error": err.Error()})
	case errors.Is(err, domain.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "code": "rate_limited", "error": "too many messages, slow down"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
