package expense

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/transport"
	"github.com/frahmantamala/expense-approval/pkg/logger"
)

type ServiceAPI interface {
	CreateExpense(ctx context.Context, actor internal.Actor, dto CreateExpenseDTO) (*Expense, error)
	UpdateExpense(ctx context.Context, actor internal.Actor, id int64, dto UpdateExpenseDTO) (*Expense, error)
	DeleteExpense(ctx context.Context, actor internal.Actor, id int64) error
	SubmitExpense(ctx context.Context, actor internal.Actor, id int64) (*Expense, error)
	GetExpense(ctx context.Context, actor internal.Actor, id int64) (*Detail, error)
	ListExpenses(ctx context.Context, actor internal.Actor, filter ListFilter) ([]*Expense, error)
	OverrideApproval(ctx context.Context, actor internal.Actor, id int64, dto approval.OverrideDTO) (*approval.OverrideResult, error)
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

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (internal.Actor, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.Logger.Error("expense handler: user not found in context", "path", r.URL.Path)
		h.WriteAppError(w, internal.ErrInvalidToken)
		return internal.Actor{}, false
	}
	return user.Actor(), true
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto CreateExpenseDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	exp, err := h.Service.CreateExpense(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, exp)
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.Service.GetExpense(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := ListFilter{
		Scope:  q.Get("scope"),
		Status: q.Get("status"),
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = l
	}
	if o, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = o
	}
	filter.normalize()

	expenses, err := h.Service.ListExpenses(r.Context(), actor, filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expenses": expenses,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	var dto UpdateExpenseDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	exp, err := h.Service.UpdateExpense(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	if err := h.Service.DeleteExpense(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SubmitExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	exp, err := h.Service.SubmitExpense(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, exp)
}

// OverrideApproval serves PATCH /expenses/{id}/override-approval.
func (h *Handler) OverrideApproval(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	var dto approval.OverrideDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	result, err := h.Service.OverrideApproval(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("expense approval overridden",
		"expense_id", id,
		"admin_id", actor.UserID,
		"status", result.ExpenseStatus)
	h.WriteJSON(w, http.StatusOK, result)
}
