package imports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/internal/participants"
	"github.com/aura-checkin/backend/pkg/response"
)

// maxUploadSize bounds the multipart file accepted by Upload.
const maxUploadSize = 10 << 20

// Importer turns parsed rows into stored participants with generated unique ids.
type Importer struct {
	store  participants.Store
	prefix string
	logger *zap.Logger
}

// NewImporter creates an importer. prefix is the event prefix for generated ids.
func NewImporter(store participants.Store, prefix string, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: store, prefix: prefix, logger: logger}
}

// Import parses r and inserts every row in one batch. It returns the inserted participants.
func (im *Importer) Import(ctx context.Context, r io.Reader) ([]models.Participant, error) {
	rows, err := ParseWorkbook(r)
	if err != nil {
		return nil, err
	}
	taken, err := im.store.Identities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	gen := participants.NewIdentityGenerator(im.prefix, taken)

	ps := make([]models.Participant, len(rows))
	for i, row := range rows {
		ps[i] = models.Participant{UniqueID: gen.Next(), Name: row.Name, Email: row.Email}
	}
	n, err := im.store.CreateBatch(ctx, ps)
	if err != nil {
		return nil, err
	}
	im.logger.Info("participants imported", zap.Int("count", n))
	return ps, nil
}

// Handler handles POST /participants/upload.
type Handler struct {
	importer *Importer
	logger   *zap.Logger
}

// NewHandler creates an upload handler.
func NewHandler(importer *Importer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{importer: importer, logger: logger}
}

// Upload handles POST /participants/upload with a multipart "file" field.
func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
		response.BadRequest(c, "only .xlsx files are supported")
		return
	}
	if fh.Size > maxUploadSize {
		response.BadRequest(c, "file too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "cannot read file")
		return
	}
	defer f.Close()

	ps, err := h.importer.Import(c.Request.Context(), f)
	switch {
	case errors.Is(err, ErrInvalidWorkbook):
		response.BadRequest(c, "file is not a readable xlsx workbook")
		return
	case errors.Is(err, ErrNoRows), errors.Is(err, ErrMissingColumns):
		response.BadRequest(c, err.Error())
		return
	case errors.Is(err, participants.ErrDuplicateIdentity):
		response.Conflict(c, "generated unique id collided, retry the upload")
		return
	case err != nil:
		h.logger.Error("import failed", zap.String("file", fh.Filename), zap.Error(err))
		response.Internal(c, "failed to import participants")
		return
	}
	response.Created(c, gin.H{"count": len(ps), "participants": ps})
}
