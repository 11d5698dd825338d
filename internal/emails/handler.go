// Package emails queues ticket emails for delivery by the worker.
package emails

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/pkg/response"
)

// Finder looks participants up by unique id.
type Finder interface {
	FindByIdentities(ctx context.Context, identities []string) ([]models.Participant, error)
}

// Enqueuer queues ticket email jobs.
type Enqueuer interface {
	EnqueueTicketEmails(ctx context.Context, uniqueIDs []string) error
}

// SendRequest is the body for POST /emails/send.
type SendRequest struct {
	UniqueIDs []string `json:"unique_ids" binding:"required,min=1"`
}

// SendResponse lists which ids were queued and which were unknown.
type SendResponse struct {
	Queued  []string `json:"queued"`
	Missing []string `json:"missing"`
}

// Handler handles POST /emails/send.
type Handler struct {
	finder Finder
	queue  Enqueuer
	logger *zap.Logger
}

// NewHandler creates an email dispatch handler.
func NewHandler(finder Finder, queue Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{finder: finder, queue: queue, logger: logger}
}

// Send handles POST /emails/send. Each known participant gets a fresh ticket by email; the previous
// ticket stops working once the job runs.
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "unique_ids is required")
		return
	}
	ids := dedupe(req.UniqueIDs)
	ctx := c.Request.Context()

	found, err := h.finder.FindByIdentities(ctx, ids)
	if err != nil {
		h.logger.Error("lookup participants failed", zap.Error(err))
		response.Internal(c, "failed to look up participants")
		return
	}
	known := make(map[string]bool, len(found))
	for _, p := range found {
		known[p.UniqueID] = true
	}
	resp := SendResponse{Queued: []string{}, Missing: []string{}}
	for _, id := range ids {
		if known[id] {
			resp.Queued = append(resp.Queued, id)
		} else {
			resp.Missing = append(resp.Missing, id)
		}
	}

	if err := h.queue.EnqueueTicketEmails(ctx, resp.Queued); err != nil {
		h.logger.Error("enqueue ticket emails failed", zap.Error(err))
		response.ServiceUnavailable(c, "email queue unavailable")
		return
	}
	h.logger.Info("ticket emails queued", zap.Int("queued", len(resp.Queued)), zap.Int("missing", len(resp.Missing)))
	response.Accepted(c, resp)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
