package emaillogs

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /email-logs?status=success|error&limit=N.
func (h *Handler) List(c *gin.Context) {
	status := c.Query("status")
	if status != "" && status != models.EmailLogStatusSuccess && status != models.EmailLogStatusError {
		response.BadRequest(c, "status must be success or error")
		return
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = n
	}
	logs, err := h.store.List(c.Request.Context(), status, limit)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	if logs == nil {
		logs = []models.EmailLog{}
	}
	response.OK(c, logs)
}

// Delete handles DELETE /email-logs/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid email log id")
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "email log not found")
			return
		}
		h.logger.Error("delete email log failed", zap.Error(err))
		response.Internal(c, "failed to delete email log")
		return
	}
	response.NoContent(c)
}

// DeleteAll handles DELETE /email-logs?all=true.
func (h *Handler) DeleteAll(c *gin.Context) {
	if c.Query("all") != "true" {
		response.BadRequest(c, "pass all=true to delete every email log")
		return
	}
	n, err := h.store.DeleteAll(c.Request.Context())
	if err != nil {
		h.logger.Error("delete email logs failed", zap.Error(err))
		response.Internal(c, "failed to delete email logs")
		return
	}
	response.OK(c, gin.H{"deleted": n})
}
