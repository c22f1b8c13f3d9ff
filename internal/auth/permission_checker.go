package auth

import (
	"context"

	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
)

const (
	PermissionSubmitExpenses      = "submit_expenses"
	PermissionApproveExpenses     = "approve_expenses"
	PermissionViewCompanyExpenses = "view_company_expenses"
	PermissionOverrideApprovals   = "override_approvals"
	PermissionManageApprovalFlows = "manage_approval_flows"
	PermissionManageUsers         = "manage_users"
	PermissionManageCompany       = "manage_company"
)

var rolePermissions = map[string][]string{
	userDatamodel.RoleEmployee: {
		PermissionSubmitExpenses,
		PermissionApproveExpenses,
	},
	userDatamodel.RoleManager: {
		PermissionSubmitExpenses,
		PermissionApproveExpenses,
		PermissionViewCompanyExpenses,
	},
	userDatamodel.RoleAdmin: {
		PermissionSubmitExpenses,
		PermissionApproveExpenses,
		PermissionViewCompanyExpenses,
		PermissionOverrideApprovals,
		PermissionManageApprovalFlows,
		PermissionManageUsers,
		PermissionManageCompany,
	},
}

// PermissionsForRole returns a copy of the permissions granted to role.
func PermissionsForRole(role string) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

type PermissionChecker interface {
	HasPermission(ctx context.Context, u *User, permission string) (bool, error)
	HasRole(ctx context.Context, u *User, roles ...string) (bool, error)
}

type DefaultPermissionChecker struct{}

func NewPermissionChecker() PermissionChecker {
	return &DefaultPermissionChecker{}
}

func (c *DefaultPermissionChecker) HasPermission(ctx context.Context, u *User, permission string) (bool, error) {
	if u.HasPermission(permission) {
		return true, nil
	}
	for _, p := range rolePermissions[u.Role] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

func (c *DefaultPermissionChecker) HasRole(ctx context.Context, u *User, roles ...string) (bool, error) {
	for _, role := range roles {
		if u.Role == role {
			return true, nil
		}
	}
	return false, nil
}
