package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	approvalPostgres "github.com/frahmantamala/expense-approval/internal/approval/postgres"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/core/database"
	companyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/company"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-approval/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const seedPassword = "password123"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed a demo company with an admin, a manager and an employee for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := initGorm(sqlDB)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			if err := db.Exec("TRUNCATE expense_approvals, expenses, approval_rules, approval_flows, manager_relations, users, companies RESTART IDENTITY CASCADE").Error; err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared existing data")
		}

		if err := seed(cmd.Context(), db, cfg.Security.BCryptCost); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	},
}

func seed(ctx context.Context, db *gorm.DB, bcryptCost int) error {
	lg := logger.L()

	var company companyDatamodel.Company
	err := db.WithContext(ctx).Where("name = ?", "Acme Demo").First(&company).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		company = companyDatamodel.Company{Name: "Acme Demo", Country: "United States", CurrencyCode: "USD", CurrencySymbol: "$"}
		if err := db.WithContext(ctx).Create(&company).Error; err != nil {
			return fmt.Errorf("insert company: %w", err)
		}
		fmt.Println("Seeded company:", company.Name)
	case err != nil:
		return err
	default:
		fmt.Println("company already exists; will ensure users")
	}

	hash, err := auth.HashPassword(seedPassword, bcryptCost)
	if err != nil {
		return err
	}

	people := []struct {
		Email string
		Name  string
		Role  string
	}{
		{"admin@acme.demo", "Ada Admin", userDatamodel.RoleAdmin},
		{"manager@acme.demo", "Mona Manager", userDatamodel.RoleManager},
		{"employee@acme.demo", "Erin Employee", userDatamodel.RoleEmployee},
	}

	ids := map[string]int64{}
	for _, p := range people {
		var u userDatamodel.User
		err := db.WithContext(ctx).Where("email = ?", p.Email).First(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			u = userDatamodel.User{
				CompanyID:    company.ID,
				Email:        p.Email,
				Name:         p.Name,
				PasswordHash: hash,
				Role:         p.Role,
				IsActive:     true,
			}
			if err := db.WithContext(ctx).Create(&u).Error; err != nil {
				return fmt.Errorf("insert user %s: %w", p.Email, err)
			}
			fmt.Printf("Seeded %s user: %s\n", p.Role, p.Email)
		} else if err != nil {
			return err
		}
		ids[p.Role] = u.ID
	}

	rel := userDatamodel.ManagerRelation{
		CompanyID:  company.ID,
		EmployeeID: ids[userDatamodel.RoleEmployee],
		ManagerID:  ids[userDatamodel.RoleManager],
	}
	if err := db.WithContext(ctx).Where("employee_id = ? AND manager_id = ?", rel.EmployeeID, rel.ManagerID).
		FirstOrCreate(&rel).Error; err != nil {
		return fmt.Errorf("insert manager relation: %w", err)
	}

	tx := database.NewTransactor(db)
	expander := approval.NewExpander(approvalPostgres.NewDirectory(db), approval.PolicySkip, approval.ManagerByRelation, lg)
	flows := approval.NewService(approvalPostgres.NewApprovalRepository(db), tx, expander, nil, nil, approval.Options{}, lg)

	admin := internal.Actor{UserID: ids[userDatamodel.RoleAdmin], CompanyID: company.ID, Role: userDatamodel.RoleAdmin}
	steps, created, err := flows.SetupDefaultFlow(ctx, admin, company.ID)
	if err != nil {
		return fmt.Errorf("default flow: %w", err)
	}
	fmt.Printf("Approval flow ready with %d steps (created=%t)\n", len(steps), created)
	fmt.Printf("All demo users share the password %q\n", seedPassword)
	return nil
}
