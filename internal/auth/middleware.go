package auth

import (
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/makerbridge/marketplace-backend/internal/users"
)

const (
	CtxExternalUID = "external_uid"
	CtxUserID      = "user_id"
	CtxUserRole    = "user_role"
)

// WithUser resolves the caller's identity and attaches the database user
// id and role to the request context. When a Firebase client is configured
// a Bearer token wins; otherwise identity comes from the X-User-* headers
// (session identity is issued out-of-band, not by this service).
func WithUser(userRepo *users.Repo, fb *fbauth.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, email, name := identity(c, fb)
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing identity"})
			c.Abort()
			return
		}

		id, role, err := userRepo.EnsureUser(c.Request.Context(), users.UpsertUser{
			ExternalUID: uid,
			Email:       email,
			DisplayName: name,
			Role:        strings.TrimSpace(c.GetHeader("X-User-Role")),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensure user: " + err.Error()})
			c.Abort()
			return
		}

		c.Set(CtxExternalUID, uid)
		c.Set(CtxUserID, id)
		c.Set(CtxUserRole, role)
		c.Next()
	}
}

func identity(c *gin.Context, fb *fbauth.Client) (uid, email, name string) {
	if fb != nil {
		if token := bearerToken(c); token != "" {
			decoded, err := fb.VerifyIDToken(c.Request.Context(), token)
			if err == nil {
				uid = decoded.UID
				if e, ok := decoded.Claims["email"].(string); ok {
					email = e
				}
				if n, ok := decoded.Claims["name"].(string); ok {
					name = n
				}
				return uid, email, name
			}
		}
	}

	uid = strings.TrimSpace(c.GetHeader("X-User-Id"))
	email = c.GetHeader("X-User-Email")
	name = c.GetHeader("X-User-Name")
	return uid, email, name
}

func bearerToken(c *gin.Context) string {
	bearer := c.GetHeader("Authorization")
	if strings.HasPrefix(bearer, "Bearer ") && len(bearer) > 7 {
		return bearer[7:]
	}
	return ""
}

// UserID returns the database id of the authenticated user.
func UserID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUserID))
}

// UserRole returns the stored role of the authenticated user.
func UserRole(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUserRole))
}
