package http

import (
	"github.com/gin-gonic/gin"

	"github.com/makerbridge/marketplace-backend/internal/auth"
)

type createReq struct {
	Title string `json:"title"`
}

type routeReq struct {
	VendorID string `json:"vendorId"`
}

type bidStatusReq struct {
	Status string `json:"status"` // accepted | rejected
}

type selectReq struct {
	VendorID string `json:"vendorId"`
}

func callerID(c *gin.Context) string {
	return auth.UserID(c)
}

func callerRole(c *gin.Context) string {
	return auth.UserRole(c)
}
