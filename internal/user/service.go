package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/auth"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-approval/internal/core/events"
)

type RepositoryAPI interface {
	Create(ctx context.Context, u *userDatamodel.User) error
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListByCompany(ctx context.Context, companyID int64) ([]*userDatamodel.User, error)
	Update(ctx context.Context, u *userDatamodel.User) error
	UpdatePassword(ctx context.Context, id int64, hash string, temporary bool) error
	CreateRelation(ctx context.Context, rel *userDatamodel.ManagerRelation) error
	RelationExists(ctx context.Context, employeeID, managerID int64) (bool, error)
	DeleteRelation(ctx context.Context, companyID, employeeID, managerID int64) (bool, error)
	DeleteRelationsOfManager(ctx context.Context, managerID int64) (int64, error)
	ListRelations(ctx context.Context, employeeID int64) ([]*userDatamodel.ManagerRelation, error)
}

type Transactor interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo       RepositoryAPI
	tx         Transactor
	publisher  events.Publisher
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, tx Transactor, publisher events.Publisher, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		tx:         tx,
		publisher:  publisher,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// RegisterAdmin creates the first ADMIN of a freshly created company. It
// joins the caller's transaction when there is one.
func (s *Service) RegisterAdmin(ctx context.Context, dto RegisterAdminDTO) (*User, error) {
	if len(dto.Password) < minPasswordLength {
		return nil, internal.NewValidationFieldError("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength), internal.ErrCodeWeakPassword)
	}
	if err := s.ensureEmailFree(ctx, dto.Email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	u := &userDatamodel.User{
		CompanyID:    dto.CompanyID,
		Email:        strings.ToLower(strings.TrimSpace(dto.Email)),
		Name:         strings.TrimSpace(dto.Name),
		PasswordHash: hash,
		Role:         userDatamodel.RoleAdmin,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}

	s.logger.Info("company admin registered", "user_id", u.ID, "company_id", u.CompanyID)
	return FromDataModel(u), nil
}

// CreateUser adds a user to the admin's company with a temporary password.
// The welcome email goes out after commit and never fails the call.
func (s *Service) CreateUser(ctx context.Context, actor internal.Actor, dto CreateUserDTO) (*CreatedUser, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	password, err := temporaryPassword()
	if err != nil {
		return nil, internal.NewInternalError("failed to generate password", err)
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	u := &userDatamodel.User{
		CompanyID:           actor.CompanyID,
		Email:               strings.ToLower(strings.TrimSpace(dto.Email)),
		Name:                strings.TrimSpace(dto.Name),
		PasswordHash:        hash,
		Role:                strings.ToUpper(dto.Role),
		IsActive:            true,
		IsTemporaryPassword: true,
	}

	err = s.tx.Run(ctx, func(ctx context.Context) error {
		if err := s.ensureEmailFree(ctx, u.Email); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, u); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if dto.ManagerID == nil {
			return nil
		}
		_, err := s.addRelation(ctx, actor.CompanyID, u.ID, *dto.ManagerID)
		return err
	})
	if err != nil {
		s.logger.Warn("failed to create user", "admin_id", actor.UserID, "error", err)
		return nil, err
	}

	s.logger.Info("user created", "user_id", u.ID, "company_id", u.CompanyID, "role", u.Role, "admin_id", actor.UserID)

	if s.publisher != nil {
		event := events.NewUserCreatedEvent(u.ID, u.CompanyID, u.Email, u.Name, password)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
		}
	}

	return &CreatedUser{User: FromDataModel(u), TemporaryPassword: password}, nil
}

// ListUsers lists the caller's company. Restricted to admins and managers.
func (s *Service) ListUsers(ctx context.Context, actor internal.Actor) ([]*User, error) {
	if !actor.CanSeeCompany() {
		return nil, internal.ErrInsufficientRole
	}
	users, err := s.repo.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	return FromDataModelSlice(users), nil
}

func (s *Service) GetUser(ctx context.Context, actor internal.Actor, id int64) (*User, error) {
	if id != actor.UserID && !actor.CanSeeCompany() {
		return nil, internal.ErrInsufficientRole
	}
	u, err := s.companyUser(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(u), nil
}

// UpdateUser changes name, role or the active flag. Moving a user away from
// MANAGER drops the relations where it was the manager.
func (s *Service) UpdateUser(ctx context.Context, actor internal.Actor, id int64, dto UpdateUserDTO) (*User, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var updated *userDatamodel.User
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		u, err := s.companyUser(ctx, actor.CompanyID, id)
		if err != nil {
			return err
		}
		previousRole := u.Role

		if dto.Name != nil {
			u.Name = strings.TrimSpace(*dto.Name)
		}
		if dto.Role != nil {
			u.Role = strings.ToUpper(*dto.Role)
		}
		if dto.IsActive != nil {
			u.IsActive = *dto.IsActive
		}

		if err := s.repo.Update(ctx, u); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		if previousRole == userDatamodel.RoleManager && u.Role != userDatamodel.RoleManager {
			dropped, err := s.repo.DeleteRelationsOfManager(ctx, u.ID)
			if err != nil {
				return fmt.Errorf("drop manager relations: %w", err)
			}
			s.logger.Info("manager relations dropped after role change", "user_id", u.ID, "role", u.Role, "relations", dropped)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user updated", "user_id", id, "admin_id", actor.UserID)
	return FromDataModel(updated), nil
}

func (s *Service) AddManager(ctx context.Context, actor internal.Actor, employeeID int64, dto ManagerRelationDTO) (*ManagerRelation, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var rel *userDatamodel.ManagerRelation
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		var err error
		rel, err = s.addRelation(ctx, actor.CompanyID, employeeID, dto.ManagerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("manager assigned", "employee_id", employeeID, "manager_id", dto.ManagerID, "admin_id", actor.UserID)
	out := RelationFromDataModel(rel)
	return &out, nil
}

func (s *Service) RemoveManager(ctx context.Context, actor internal.Actor, employeeID, managerID int64) error {
	if !actor.IsAdmin() {
		return internal.ErrInsufficientRole
	}
	deleted, err := s.repo.DeleteRelation(ctx, actor.CompanyID, employeeID, managerID)
	if err != nil {
		return err
	}
	if !deleted {
		return internal.NewNotFoundError("Manager relation not found", internal.ErrCodeInvalidRelation)
	}
	s.logger.Info("manager unassigned", "employee_id", employeeID, "manager_id", managerID, "admin_id", actor.UserID)
	return nil
}

func (s *Service) ListManagers(ctx context.Context, actor internal.Actor, employeeID int64) ([]ManagerRelation, error) {
	if employeeID != actor.UserID && !actor.CanSeeCompany() {
		return nil, internal.ErrInsufficientRole
	}
	if _, err := s.companyUser(ctx, actor.CompanyID, employeeID); err != nil {
		return nil, err
	}
	rels, err := s.repo.ListRelations(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	out := make([]ManagerRelation, len(rels))
	for i, r := range rels {
		out[i] = RelationFromDataModel(r)
	}
	return out, nil
}

func (s *Service) Me(ctx context.Context, actor internal.Actor) (*User, error) {
	u, err := s.repo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return FromDataModel(u), nil
}

// ChangePassword replaces the caller's password and clears the temporary flag.
func (s *Service) ChangePassword(ctx context.Context, actor internal.Actor, dto ChangePasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.repo.GetByID(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if err := auth.VerifyPassword(u.PasswordHash, dto.CurrentPassword); err != nil {
		return internal.ErrInvalidCredentials
	}
	if dto.NewPassword == dto.CurrentPassword {
		return internal.NewValidationFieldError("new_password", "new password must differ from the current one", internal.ErrCodeWeakPassword)
	}

	hash, err := auth.HashPassword(dto.NewPassword, s.bcryptCost)
	if err != nil {
		return internal.NewInternalError("failed to hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, u.ID, hash, false); err != nil {
		return err
	}

	s.logger.Info("password changed", "user_id", u.ID)
	return nil
}

func (s *Service) addRelation(ctx context.Context, companyID, employeeID, managerID int64) (*userDatamodel.ManagerRelation, error) {
	if employeeID == managerID {
		return nil, internal.NewValidationFieldError("manager_id", "a user cannot manage themselves", internal.ErrCodeInvalidRelation)
	}
	if _, err := s.companyUser(ctx, companyID, employeeID); err != nil {
		return nil, err
	}
	manager, err := s.companyUser(ctx, companyID, managerID)
	if err != nil {
		return nil, err
	}
	if !FromDataModel(manager).CanManage() {
		return nil, internal.NewValidationFieldError("manager_id", "manager must be an active MANAGER or ADMIN", internal.ErrCodeInvalidRelation)
	}

	exists, err := s.repo.RelationExists(ctx, employeeID, managerID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, internal.NewConflictError("Manager relation already exists", internal.ErrCodeInvalidRelation)
	}

	rel := &userDatamodel.ManagerRelation{CompanyID: companyID, EmployeeID: employeeID, ManagerID: managerID}
	if err := s.repo.CreateRelation(ctx, rel); err != nil {
		return nil, fmt.Errorf("create manager relation: %w", err)
	}
	return rel, nil
}

// companyUser loads a user and hides it when it belongs to another company.
func (s *Service) companyUser(ctx context.Context, companyID, id int64) (*userDatamodel.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.CompanyID != companyID {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string) error {
	taken, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return internal.ErrEmailTaken
	}
	return nil
}

func temporaryPassword() (string, error) {
	token, err := auth.GenerateRandomToken()
	if err != nil {
		return "", err
	}
	return token[:12], nil
}
