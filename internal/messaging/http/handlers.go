package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/makerbridge/marketplace-backend/internal/messaging/service"
)

type Handler struct {
	svc    *service.MessageService
	stream *StreamHandler
}

func NewHandler(svc *service.MessageService, stream *StreamHandler) *Handler {
	return &Handler{svc: svc, stream: stream}
}

// Register attaches messaging routes under the projects group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/:public_id/messages", h.list)
	rg.POST("/:public_id/messages", h.send)
	rg.GET("/:public_id/messages/stream", h.stream.Stream)
	rg.GET("/:public_id/threads", h.threads)
}

func (h *Handler) list(c *gin.Context) {
	projectID := c.Param("public_id")
	vendorID := c.Query("vendorId")
	cursor := c.Query("cursor")

	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	msgs, err := h.svc.List(c.Request.Context(), actorFrom(c), projectID, vendorID, cursor, limit)
	if err != nil {
		respondErr(c, err)
		return
	}

	next := cursor
	if len(msgs) > 0 {
		next = msgs[len(msgs)-1].ID
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "messages": msgs, "next_cursor": next})
}

func (h *Handler) send(c *gin.Context) {
	projectID := c.Param("public_id")

	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "code": "invalid_request", "error": "invalid body"})
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), actorFrom(c), service.SendInput{
		ProjectID:   projectID,
		VendorScope: req.VendorID,
		Text:        req.MessageText,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "message": msg})
}

func (h *Handler) threads(c *gin.Context) {
	projectID := c.Param("public_id")

	keys, err := h.svc.Threads(c.Request.Context(), actorFrom(c), projectID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "threads": keys})
}
