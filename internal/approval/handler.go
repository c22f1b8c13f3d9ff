package approval

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/transport"
	"github.com/frahmantamala/expense-approval/pkg/logger"
)

type ServiceAPI interface {
	RecordDecision(ctx context.Context, actor internal.Actor, expenseID int64, dto DecisionDTO) (*DecisionResult, error)
	PendingFor(ctx context.Context, actor internal.Actor) ([]*PendingApproval, error)
	ApprovalsForExpense(ctx context.Context, expenseID int64) ([]Approval, error)
	SetupDefaultFlow(ctx context.Context, actor internal.Actor, companyID int64) ([]Flow, bool, error)
	ListFlows(ctx context.Context, actor internal.Actor) ([]Flow, error)
	CreateFlow(ctx context.Context, actor internal.Actor, dto CreateFlowDTO) (*Flow, error)
	UpdateFlow(ctx context.Context, actor internal.Actor, id int64, dto UpdateFlowDTO) (*Flow, error)
	DeleteFlow(ctx context.Context, actor internal.Actor, id int64) error
	ListRules(ctx context.Context, actor internal.Actor) ([]Rule, error)
	CreateRule(ctx context.Context, actor internal.Actor, dto CreateRuleDTO) (*Rule, error)
	UpdateRule(ctx context.Context, actor internal.Actor, id int64, dto UpdateRuleDTO) (*Rule, error)
	DeleteRule(ctx context.Context, actor internal.Actor, id int64) error
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
	if !ok {
		h.Logger.Error("approval handler: user not found in context", "path", r.URL.Path)
		h.WriteAppError(w, internal.ErrInvalidToken)
		return internal.Actor{}, false
	}
	return user.Actor(), true
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	expenseID, ok := h.PathInt64(w, r, "expenseId")
	if !ok {
		return
	}

	var dto DecisionDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	result, err := h.Service.RecordDecision(r.Context(), actor, expenseID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	pending, err := h.Service.PendingFor(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"approvals": pending,
		"count":     len(pending),
	})
}

func (h *Handler) ExpenseTrail(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	trail, err := h.Service.ApprovalsForExpense(r.Context(), expenseID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expense_id": expenseID,
		"approvals":  trail,
	})
}

func (h *Handler) SetupFlow(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	companyID, ok := h.PathInt64(w, r, "companyId")
	if !ok {
		return
	}

	flows, created, err := h.Service.SetupDefaultFlow(r.Context(), actor, companyID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.WriteJSON(w, status, map[string]interface{}{
		"created": created,
		"flows":   flows,
	})
}

func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	flows, err := h.Service.ListFlows(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, flows)
}

func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto CreateFlowDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	flow, err := h.Service.CreateFlow(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, flow)
}

func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	var dto UpdateFlowDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	flow, err := h.Service.UpdateFlow(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, flow)
}

func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	if err := h.Service.DeleteFlow(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	rules, err := h.Service.ListRules(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rules)
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto CreateRuleDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	rule, err := h.Service.CreateRule(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, rule)
}

func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	var dto UpdateRuleDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	rule, err := h.Service.UpdateRule(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rule)
}

func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	if err := h.Service.DeleteRule(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

