package user

import (
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/core/common/validation"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
)

const minPasswordLength = 8

var roles = []string{userDatamodel.RoleAdmin, userDatamodel.RoleManager, userDatamodel.RoleEmployee}

type CreateUserDTO struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	ManagerID *int64 `json:"manager_id,omitempty"`
}

func (d CreateUserDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email()
	v.Field("name", d.Name).Required().MaxLength(120)
	v.Field("role", strings.ToUpper(d.Role)).Required().OneOf(internal.ErrCodeInvalidRole, roles...)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type UpdateUserDTO struct {
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (d UpdateUserDTO) Validate() error {
	v := validation.NewValidator()
	if d.Name != nil {
		v.Field("name", *d.Name).Required().MaxLength(120)
	}
	if d.Role != nil {
		v.Field("role", strings.ToUpper(*d.Role)).Required().OneOf(internal.ErrCodeInvalidRole, roles...)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ManagerRelationDTO struct {
	ManagerID int64 `json:"manager_id"`
}

func (d ManagerRelationDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("manager_id", d.ManagerID).MinInt(1, internal.ErrCodeInvalidRelation)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (d ChangePasswordDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("current_password", d.CurrentPassword).Required()
	v.Field("new_password", d.NewPassword).Required().MinLength(minPasswordLength)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// RegisterAdminDTO creates the first user of a new company.
type RegisterAdminDTO struct {
	CompanyID int64
	Name      string
	Email     string
	Password  string
}
