package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-approval/internal/approval"
	"github.com/frahmantamala/expense-approval/internal/core/database"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"gorm.io/gorm"
)

// Directory resolves approvers among the active users of a company.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) approval.ApproverDirectory {
	return &Directory{db: db}
}

func (d *Directory) FindUserByRole(ctx context.Context, companyID int64, role string) (int64, bool, error) {
	var u userDatamodel.User
	err := database.Conn(ctx, d.db).
		Select("id").
		Where("company_id = ? AND role = ? AND is_active = ?", companyID, role, true).
		Order("id ASC").
		First(&u).Error
	return found(u.ID, err)
}

// FindManagerOf returns the employee's earliest designated active manager.
func (d *Directory) FindManagerOf(ctx context.Context, companyID, employeeID int64) (int64, bool, error) {
	var rel userDatamodel.ManagerRelation
	err := database.Conn(ctx, d.db).
		Model(&userDatamodel.ManagerRelation{}).
		Select("manager_relations.manager_id").
		Joins("JOIN users ON users.id = manager_relations.manager_id").
		Where("manager_relations.company_id = ? AND manager_relations.employee_id = ?", companyID, employeeID).
		Where("users.company_id = ? AND users.is_active = ?", companyID, true).
		Order("manager_relations.id ASC").
		First(&rel).Error
	return found(rel.ManagerID, err)
}

func found(id int64, err error) (int64, bool, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}
