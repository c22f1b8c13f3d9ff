package user

import (
	"time"

	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
)

type User struct {
	ID                  int64     `json:"id"`
	CompanyID           int64     `json:"company_id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	Role                string    `json:"role"`
	IsActive            bool      `json:"is_active"`
	IsTemporaryPassword bool      `json:"is_temporary_password"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// CreatedUser carries the one-time temporary password back to the admin.
type CreatedUser struct {
	*User
	TemporaryPassword string `json:"temporary_password"`
}

type ManagerRelation struct {
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employee_id"`
	ManagerID  int64     `json:"manager_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == userDatamodel.RoleAdmin
}

func (u *User) IsManager() bool {
	return u.Role == userDatamodel.RoleManager
}

// CanManage reports whether the user may be assigned as someone's manager.
func (u *User) CanManage() bool {
	return u.IsActive && (u.IsManager() || u.IsAdmin())
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:                  u.ID,
		CompanyID:           u.CompanyID,
		Email:               u.Email,
		Name:                u.Name,
		Role:                u.Role,
		IsActive:            u.IsActive,
		IsTemporaryPassword: u.IsTemporaryPassword,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func FromDataModelSlice(users []*userDatamodel.User) []*User {
	result := make([]*User, len(users))
	for i, u := range users {
		result[i] = FromDataModel(u)
	}
	return result
}

func RelationFromDataModel(r *userDatamodel.ManagerRelation) ManagerRelation {
	return ManagerRelation{
		ID:         r.ID,
		EmployeeID: r.EmployeeID,
		ManagerID:  r.ManagerID,
		CreatedAt:  r.CreatedAt,
	}
}
