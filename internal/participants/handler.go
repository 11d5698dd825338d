package participants

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/internal/ticket"
	"github.com/aura-checkin/backend/pkg/response"
)

// CreateRequest is the body for POST /participants. UniqueID is generated when empty.
type CreateRequest struct {
	UniqueID     string  `json:"unique_id"`
	Name         string  `json:"name" binding:"required"`
	Email        string  `json:"email" binding:"required"`
	RegisteredAt *string `json:"registered_at"`
}

// UpdateRequest is the body for PATCH /participants/:unique.
type UpdateRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// Handler handles participant HTTP endpoints.
type Handler struct {
	store  Store
	prefix string
	logger *zap.Logger
}

// NewHandler creates a participants handler. prefix is used for generated unique ids.
func NewHandler(store Store, prefix string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, prefix: prefix, logger: logger}
}

// List handles GET /participants. Optional ?status=attended|not-attended.
func (h *Handler) List(c *gin.Context) {
	status := c.DefaultQuery("status", models.AttendanceAll)
	switch status {
	case models.AttendanceAll, models.AttendanceAttended, models.AttendanceNotAttended:
	default:
		response.BadRequest(c, "status must be one of all, attended, not-attended")
		return
	}
	list, err := h.store.List(c.Request.Context(), status)
	if err != nil {
		h.logger.Error("list participants failed", zap.Error(err))
		response.Internal(c, "failed to list participants")
		return
	}
	if list == nil {
		list = []models.Participant{}
	}
	response.OK(c, list)
}

// Get handles GET /participants/:unique.
func (h *Handler) Get(c *gin.Context) {
	p, err := h.store.GetByIdentity(c.Request.Context(), c.Param("unique"))
	if err != nil {
		h.fail(c, err, "failed to get participant")
		return
	}
	response.OK(c, p)
}

// Create handles POST /participants.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" {
		response.BadRequest(c, "name is required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		response.BadRequest(c, "invalid email")
		return
	}

	p := &models.Participant{Name: req.Name, Email: req.Email}
	if req.RegisteredAt != nil {
		t, err := time.Parse(time.RFC3339, *req.RegisteredAt)
		if err != nil {
			response.BadRequest(c, "invalid registered_at")
			return
		}
		p.RegisteredAt = &t
	}

	ctx := c.Request.Context()
	if id := strings.TrimSpace(req.UniqueID); id != "" {
		if !ticket.ValidIdentity(id) {
			response.BadRequest(c, "unique_id may only contain letters, digits, '-' and '_'")
			return
		}
		p.UniqueID = id
	} else {
		taken, err := h.store.Identities(ctx)
		if err != nil {
			h.logger.Error("load identities failed", zap.Error(err))
			response.Internal(c, "failed to create participant")
			return
		}
		p.UniqueID = NewIdentityGenerator(h.prefix, taken).Next()
	}

	if err := h.store.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			response.Conflict(c, "unique_id already exists")
			return
		}
		h.logger.Error("create participant failed", zap.Error(err))
		response.Internal(c, "failed to create participant")
		return
	}
	response.Created(c, p)
}

// Update handles PATCH /participants/:unique.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Name == nil && req.Email == nil {
		response.BadRequest(c, "nothing to update")
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			response.BadRequest(c, "name must not be empty")
			return
		}
		req.Name = &name
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			response.BadRequest(c, "invalid email")
			return
		}
		req.Email = &email
	}
	p, err := h.store.Update(c.Request.Context(), c.Param("unique"), Update{Name: req.Name, Email: req.Email})
	if err != nil {
		h.fail(c, err, "failed to update participant")
		return
	}
	response.OK(c, p)
}

// Delete handles DELETE /participants/:unique.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("unique")); err != nil {
		h.fail(c, err, "failed to delete participant")
		return
	}
	response.NoContent(c)
}

// DeleteAll handles DELETE /participants?all=true.
func (h *Handler) DeleteAll(c *gin.Context) {
	if c.Query("all") != "true" {
		response.BadRequest(c, "pass all=true to delete every participant")
		return
	}
	n, err := h.store.DeleteAll(c.Request.Context())
	if err != nil {
		h.logger.Error("delete all participants failed", zap.Error(err))
		response.Internal(c, "failed to delete participants")
		return
	}
	h.logger.Info("participants deleted", zap.Int64("count", n))
	response.OK(c, gin.H{"deleted": n})
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	if errors.Is(err, ticket.ErrParticipantNotFound) {
		response.Fail(c, http.StatusNotFound, ticket.KindParticipantNotFound, "participant not found", nil)
		return
	}
	h.logger.Error(msg, zap.Error(err))
	response.Internal(c, msg)
}
