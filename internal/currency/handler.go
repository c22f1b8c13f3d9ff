package currency

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/core/common/validation"
	"github.com/frahmantamala/expense-approval/internal/transport"
	"github.com/frahmantamala/expense-approval/pkg/logger"
)

type ServiceAPI interface {
	Rate(ctx context.Context, base, target string) (*Rate, error)
	RatesFor(ctx context.Context, base string) ([]Rate, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// GetRates serves GET /currencies/rates?base=USD[&target=EUR].
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	base := normalize(r.URL.Query().Get("base"))
	target := normalize(r.URL.Query().Get("target"))

	if !validation.IsCurrencyCode(base) {
		h.WriteAppError(w, internal.NewValidationFieldError("base", "base must be a 3-letter currency code", internal.ErrCodeInvalidCurrency))
		return
	}

	if target != "" {
		if !validation.IsCurrencyCode(target) {
			h.WriteAppError(w, internal.NewValidationFieldError("target", "target must be a 3-letter currency code", internal.ErrCodeInvalidCurrency))
			return
		}
		rate, err := h.Service.Rate(r.Context(), base, target)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, rate)
		return
	}

	rates, err := h.Service.RatesFor(r.Context(), base)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"base":  base,
		"rates": rates,
	})
}
