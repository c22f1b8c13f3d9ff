package category

import "time"

// ExpenseCategory is a catalog entry. A nil CompanyID marks a global category.
type ExpenseCategory struct {
	ID          int64     `gorm:"primaryKey"`
	CompanyID   *int64    `gorm:"column:company_id;uniqueIndex:idx_expense_categories_company_name"`
	Name        string    `gorm:"column:name;not null;uniqueIndex:idx_expense_categories_company_name"`
	Description string    `gorm:"column:description"`
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ExpenseCategory) TableName() string {
	return "expense_categories"
}
