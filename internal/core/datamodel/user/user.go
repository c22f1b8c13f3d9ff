package user

import "time"

const (
	RoleAdmin    = "ADMIN"
	RoleManager  = "MANAGER"
	RoleEmployee = "EMPLOYEE"
)

type User struct {
	ID                  int64     `gorm:"primaryKey"`
	CompanyID           int64     `gorm:"column:company_id;not null;index"`
	Email               string    `gorm:"column:email;uniqueIndex;not null"`
	Name                string    `gorm:"column:name;not null"`
	PasswordHash        string    `gorm:"column:password_hash;not null"`
	Role                string    `gorm:"column:role;not null;default:EMPLOYEE"`
	IsActive            bool      `gorm:"column:is_active;default:true"`
	IsTemporaryPassword bool      `gorm:"column:is_temporary_password;default:false"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// ManagerRelation links an employee to one of its managers within a company.
type ManagerRelation struct {
	ID         int64     `gorm:"primaryKey"`
	CompanyID  int64     `gorm:"column:company_id;not null;index"`
	EmployeeID int64     `gorm:"column:employee_id;not null;uniqueIndex:idx_manager_relations_pair"`
	ManagerID  int64     `gorm:"column:manager_id;not null;uniqueIndex:idx_manager_relations_pair;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ManagerRelation) TableName() string {
	return "manager_relations"
}
