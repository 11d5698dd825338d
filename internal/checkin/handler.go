// Package checkin exposes ticket issuance and QR redemption over HTTP.
package checkin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/i18n"
	"github.com/aura-checkin/backend/internal/ticket"
	"github.com/aura-checkin/backend/pkg/response"
)

// RedeemRequest is the body for POST /checkin.
type RedeemRequest struct {
	Payload string `json:"payload" binding:"required"`
}

// TicketResponse is returned by POST /participants/:unique/ticket.
type TicketResponse struct {
	UniqueID string `json:"unique_id"`
	Payload  string `json:"payload"`
	QRCode   string `json:"qr_code"`
	Message  string `json:"message"`
}

// RedeemResponse is returned by POST /checkin.
type RedeemResponse struct {
	UniqueID string `json:"unique_id"`
	Name     string `json:"name"`
	Message  string `json:"message"`
}

// Handler handles ticket and check-in endpoints.
type Handler struct {
	tickets *ticket.Service
	tr      *i18n.Translator
	qrSize  int
	logger  *zap.Logger
}

// NewHandler creates a check-in handler.
func NewHandler(tickets *ticket.Service, tr *i18n.Translator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{tickets: tickets, tr: tr, qrSize: ticket.DefaultQRSize, logger: logger}
}

// Issue handles POST /participants/:unique/ticket. Issuing again revokes the previous QR code.
func (h *Handler) Issue(c *gin.Context) {
	tk, err := h.tickets.Issue(c.Request.Context(), c.Param("unique"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	qr, err := ticket.DataURL(tk.Payload, h.qrSize)
	if err != nil {
		h.logger.Error("render qr failed", zap.String("unique_id", tk.UniqueID), zap.Error(err))
		h.fail(c, err, nil)
		return
	}
	response.Created(c, TicketResponse{
		UniqueID: tk.UniqueID,
		Payload:  tk.Payload,
		QRCode:   qr,
		Message:  h.tr.T(c.GetHeader("Accept-Language"), "ticket_issued"),
	})
}

// Redeem handles POST /checkin.
func (h *Handler) Redeem(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, ticket.ErrMalformedPayload, nil)
		return
	}
	red, err := h.tickets.Redeem(c.Request.Context(), req.Payload)
	if err != nil {
		var data interface{}
		if errors.Is(err, ticket.ErrAlreadyCheckedIn) {
			data = red
		}
		h.fail(c, err, data)
		return
	}
	response.OK(c, RedeemResponse{
		UniqueID: red.UniqueID,
		Name:     red.Name,
		Message:  h.tr.T(c.GetHeader("Accept-Language"), ticket.KindOK),
	})
}

func (h *Handler) fail(c *gin.Context, err error, data interface{}) {
	kind := ticket.Kind(err)
	if kind == ticket.KindInternal || kind == ticket.KindStorageUnavailable {
		h.logger.Error("check-in request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	response.Fail(c, StatusFor(err), kind, h.tr.T(c.GetHeader("Accept-Language"), kind), data)
}

// StatusFor maps a ticket error to its HTTP status.
func StatusFor(err error) int {
	switch ticket.Kind(err) {
	case ticket.KindOK:
		return http.StatusOK
	case ticket.KindMalformedPayload:
		return http.StatusBadRequest
	case ticket.KindParticipantNotFound:
		return http.StatusNotFound
	case ticket.KindAlreadyCheckedIn, ticket.KindConcurrentRedemption:
		return http.StatusConflict
	case ticket.KindInvalidOrUsedToken:
		return http.StatusUnprocessableEntity
	case ticket.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
