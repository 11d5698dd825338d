// Package exports writes attendance workbooks for download or S3 archival.
package exports

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/i18n"
	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/pkg/response"
	"github.com/aura-checkin/backend/pkg/storage"
)

const sheetName = "Participants"

var headers = []interface{}{"No", "Unique ID", "Name", "Email", "Status"}

// Lister is the read side of the participant store.
type Lister interface {
	List(ctx context.Context, attendance string) ([]models.Participant, error)
}

// Archive stores exported workbooks and hands out download links.
type Archive interface {
	UploadExport(ctx context.Context, key string, body []byte) error
	PresignDownload(ctx context.Context, key string) (string, error)
}

// StripPrefix removes the event prefix and its dash from a unique id.
func StripPrefix(uniqueID, prefix string) string {
	prefix = strings.TrimSuffix(prefix, "-")
	if prefix == "" {
		return uniqueID
	}
	return strings.TrimPrefix(uniqueID, prefix+"-")
}

// BuildWorkbook writes ps to a single-sheet xlsx. status renders the attendance column.
func BuildWorkbook(ps []models.Participant, prefix string, status func(present bool) string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, p := range ps {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{i + 1, StripPrefix(p.UniqueID, prefix), p.Name, p.Email, status(p.Present)}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheetName, "B", "D", 28); err != nil {
		return nil, err
	}
	return f.WriteToBuffer()
}

// Handler handles GET /participants/export.
type Handler struct {
	store   Lister
	archive Archive
	tr      *i18n.Translator
	prefix  string
	now     func() time.Time
	logger  *zap.Logger
}

// NewHandler creates an export handler. archive may be nil when S3 is not configured.
func NewHandler(store Lister, archive Archive, tr *i18n.Translator, prefix string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, archive: archive, tr: tr, prefix: prefix, now: time.Now, logger: logger}
}

// Export handles GET /participants/export?type=all|attended|not-attended[&destination=s3].
func (h *Handler) Export(c *gin.Context) {
	kind := c.DefaultQuery("type", models.AttendanceAll)
	switch kind {
	case models.AttendanceAll, models.AttendanceAttended, models.AttendanceNotAttended:
	default:
		response.BadRequest(c, "type must be one of all, attended, not-attended")
		return
	}
	toS3 := c.Query("destination") == "s3"
	if toS3 && h.archive == nil {
		response.BadRequest(c, "S3 export is not configured")
		return
	}

	ctx := c.Request.Context()
	ps, err := h.store.List(ctx, kind)
	if err != nil {
		h.logger.Error("export list failed", zap.Error(err))
		response.Internal(c, "failed to load participants")
		return
	}
	if len(ps) == 0 {
		response.NotFound(c, "no participants to export")
		return
	}

	lang := c.GetHeader("Accept-Language")
	present, absent := h.tr.T(lang, "status_present"), h.tr.T(lang, "status_absent")
	buf, err := BuildWorkbook(ps, h.prefix, func(p bool) string {
		if p {
			return present
		}
		return absent
	})
	if err != nil {
		h.logger.Error("build workbook failed", zap.Error(err))
		response.Internal(c, "failed to build workbook")
		return
	}

	at := h.now()
	filename := fmt.Sprintf("participants-%s-%s.xlsx", kind, at.UTC().Format("20060102-150405"))
	if toS3 {
		key := storage.ExportKey(at, filename)
		if err := h.archive.UploadExport(ctx, key, buf.Bytes()); err != nil {
			h.logger.Error("export upload failed", zap.String("key", key), zap.Error(err))
			response.ServiceUnavailable(c, "failed to upload export")
			return
		}
		url, err := h.archive.PresignDownload(ctx, key)
		if err != nil {
			h.logger.Error("export presign failed", zap.String("key", key), zap.Error(err))
			response.Internal(c, "failed to sign export url")
			return
		}
		response.OK(c, gin.H{"key": key, "url": url, "count": len(ps)})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, storage.ContentTypeXLSX, buf.Bytes())
}
