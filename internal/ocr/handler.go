package ocr

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/transport"
	"github.com/frahmantamala/expense-approval/pkg/logger"
)

type ServiceAPI interface {
	Scan(ctx context.Context, image []byte) *Result
}

type Handler struct {
	*transport.BaseHandler
	Service       ServiceAPI
	MaxUploadSize int64
}

func NewHandler(service ServiceAPI, maxUploadSize int64) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	if maxUploadSize <= 0 {
		maxUploadSize = 10 << 20
	}
	return &Handler{
		BaseHandler:   transport.NewBaseHandler(lg),
		Service:       service,
		MaxUploadSize: maxUploadSize,
	}
}

// ScanReceipt serves POST /expenses/ocr with a multipart "receipt" file.
func (h *Handler) ScanReceipt(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); !ok {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadSize)
	if err := r.ParseMultipartForm(h.MaxUploadSize); err != nil {
		h.Logger.Warn("invalid receipt upload", "error", err)
		h.WriteAppError(w, internal.NewValidationFieldError("receipt", "receipt must be a multipart upload within the size limit", internal.ErrCodeOCRFailed))
		return
	}

	file, _, err := r.FormFile("receipt")
	if err != nil {
		h.WriteAppError(w, internal.NewValidationFieldError("receipt", "receipt file is required", internal.ErrCodeOCRFailed))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		h.WriteJSON(w, http.StatusOK, failed("could not read the uploaded receipt"))
		return
	}

	h.WriteJSON(w, http.StatusOK, h.Service.Scan(r.Context(), image))
}
