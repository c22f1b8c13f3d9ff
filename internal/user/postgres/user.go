package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/core/database"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-approval/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return r.conn(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.conn(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&userDatamodel.User{}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ListByCompany(ctx context.Context, companyID int64) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	err := r.conn(ctx).
		Where("company_id = ?", companyID).
		Order("name ASC, id ASC").
		Find(&users).Error
	return users, err
}

func (r *UserRepository) Update(ctx context.Context, u *userDatamodel.User) error {
	return r.conn(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"name":      u.Name,
			"role":      u.Role,
			"is_active": u.IsActive,
		}).Error
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string, temporary bool) error {
	return r.conn(ctx).Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"password_hash":         hash,
			"is_temporary_password": temporary,
		}).Error
}

func (r *UserRepository) CreateRelation(ctx context.Context, rel *userDatamodel.ManagerRelation) error {
	return r.conn(ctx).Create(rel).Error
}

func (r *UserRepository) RelationExists(ctx context.Context, employeeID, managerID int64) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&userDatamodel.ManagerRelation{}).
		Where("employee_id = ? AND manager_id = ?", employeeID, managerID).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) DeleteRelation(ctx context.Context, companyID, employeeID, managerID int64) (bool, error) {
	res := r.conn(ctx).
		Where("company_id = ? AND employee_id = ? AND manager_id = ?", companyID, employeeID, managerID).
		Delete(&userDatamodel.ManagerRelation{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *UserRepository) DeleteRelationsOfManager(ctx context.Context, managerID int64) (int64, error) {
	res := r.conn(ctx).Where("manager_id = ?", managerID).Delete(&userDatamodel.ManagerRelation{})
	return res.RowsAffected, res.Error
}

func (r *UserRepository) ListRelations(ctx context.Context, employeeID int64) ([]*userDatamodel.ManagerRelation, error) {
	var rels []*userDatamodel.ManagerRelation
	err := r.conn(ctx).
		Where("employee_id = ?", employeeID).
		Order("id ASC").
		Find(&rels).Error
	return rels, err
}
