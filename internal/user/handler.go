package user

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
	CreateUser(ctx context.Context, actor internal.Actor, dto CreateUserDTO) (*CreatedUser, error)
	ListUsers(ctx context.Context, actor internal.Actor) ([]*User, error)
	GetUser(ctx context.Context, actor internal.Actor, id int64) (*User, error)
	UpdateUser(ctx context.Context, actor internal.Actor, id int64, dto UpdateUserDTO) (*User, error)
	AddManager(ctx context.Context, actor internal.Actor, employeeID int64, dto ManagerRelationDTO) (*ManagerRelation, error)
	RemoveManager(ctx context.Context, actor internal.Actor, employeeID, managerID int64) error
	ListManagers(ctx context.Context, actor internal.Actor, employeeID int64) ([]ManagerRelation, error)
	Me(ctx context.Context, actor internal.Actor) (*User, error)
	ChangePassword(ctx context.Context, actor internal.Actor, dto ChangePasswordDTO) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (internal.Actor, bool) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok || u == nil {
		h.Logger.Error("user handler: user not found in context", "path", r.URL.Path)
		h.WriteAppError(w, internal.ErrInvalidToken)
		return internal.Actor{}, false
	}
	return u.Actor(), true
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	u, err := h.Service.Me(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

// ChangePassword handles POST /users/me/password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto ChangePasswordDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	if err := h.Service.ChangePassword(r.Context(), actor, dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto CreateUserDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	created, err := h.Service.CreateUser(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	users, err := h.Service.ListUsers(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	u, err := h.Service.GetUser(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	var dto UpdateUserDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	u, err := h.Service.UpdateUser(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) ListManagers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	rels, err := h.Service.ListManagers(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"employee_id": id,
		"managers":    rels,
	})
}

func (h *Handler) AddManager(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}

	var dto ManagerRelationDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	rel, err := h.Service.AddManager(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, rel)
}

func (h *Handler) RemoveManager(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.PathInt64(w, r, "id")
	if !ok {
		return
	}
	managerID, ok := h.PathInt64(w, r, "managerId")
	if !ok {
		return
	}

	if err := h.Service.RemoveManager(r.Context(), actor, id, managerID); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
