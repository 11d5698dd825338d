// Package dashboard serves the attendance snapshot that check-in screens poll.
package dashboard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/pkg/response"
)

// Lister is the read side of the participant store.
type Lister interface {
	List(ctx context.Context, attendance string) ([]models.Participant, error)
}

// Summary counts participants by attendance. TicketsOutstanding counts issued tickets not yet redeemed.
type Summary struct {
	Total              int `json:"total"`
	Attended           int `json:"attended"`
	NotAttended        int `json:"not_attended"`
	TicketsOutstanding int `json:"tickets_outstanding"`
}

// Snapshot is the body of GET /dashboard.
type Snapshot struct {
	Participants   []models.Participant `json:"participants"`
	Summary        Summary              `json:"summary"`
	PollIntervalMs int64                `json:"poll_interval_ms"`
}

// Summarize counts ps by attendance.
func Summarize(ps []models.Participant) Summary {
	s := Summary{Total: len(ps)}
	for i := range ps {
		if ps[i].Present {
			s.Attended++
		}
		if ps[i].HasTicket() {
			s.TicketsOutstanding++
		}
	}
	s.NotAttended = s.Total - s.Attended
	return s
}

// Handler handles GET /dashboard.
type Handler struct {
	store        Lister
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewHandler creates a dashboard handler. pollInterval is advertised to clients.
func NewHandler(store Lister, pollInterval time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, pollInterval: pollInterval, logger: logger}
}

// Get handles GET /dashboard. A matching If-None-Match gets 304 with no body.
func (h *Handler) Get(c *gin.Context) {
	ps, err := h.store.List(c.Request.Context(), models.AttendanceAll)
	if err != nil {
		h.logger.Error("dashboard snapshot failed", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	if ps == nil {
		ps = []models.Participant{}
	}
	snap := Snapshot{
		Participants:   ps,
		Summary:        Summarize(ps),
		PollIntervalMs: h.pollInterval.Milliseconds(),
	}
	tag, err := ETag(snap)
	if err != nil {
		h.logger.Error("dashboard etag failed", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}

	c.Header("ETag", tag)
	c.Header("Cache-Control", "no-cache")
	if matches(c.GetHeader("If-None-Match"), tag) {
		c.Status(http.StatusNotModified)
		return
	}
	response.OK(c, snap)
}

// ETag returns a strong entity tag over the JSON form of snap.
func ETag(snap Snapshot) (string, error) {
	b, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:16]) + `"`, nil
}

func matches(ifNoneMatch, tag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == tag {
			return true
		}
	}
	return false
}
