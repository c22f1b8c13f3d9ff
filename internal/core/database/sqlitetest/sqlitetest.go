// Package sqlitetest opens in-memory databases carrying the full schema.
package sqlitetest

import (
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	categoryDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/category"
	companyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/company"
	currencyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/currency"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh in-memory database. A single connection is kept so
// every query, transactional or not, sees the same database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&companyDatamodel.Company{},
		&userDatamodel.User{},
		&userDatamodel.ManagerRelation{},
		&expenseDatamodel.Expense{},
		&approvalDatamodel.Flow{},
		&approvalDatamodel.Rule{},
		&approvalDatamodel.ExpenseApproval{},
		&categoryDatamodel.ExpenseCategory{},
		&currencyDatamodel.ExchangeRate{},
	)
	if err != nil {
		return nil, err
	}
	return db, nil
}
