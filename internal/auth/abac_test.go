package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = ginkgo.Describe("ABACPolicy", func() {
	var (
		policy *ABACPolicy
		res    ExpenseAttributes
	)

	ginkgo.BeforeEach(func() {
		policy = &ABACPolicy{}
		res = ExpenseAttributes{CompanyID: 1, EmployeeID: 10}
	})

	ginkgo.Describe("CanViewExpense", func() {
		ginkgo.It("should allow the owner", func() {
			gomega.Expect(policy.CanViewExpense(&User{ID: 10, CompanyID: 1, Role: userDatamodel.RoleEmployee}, res)).To(gomega.Succeed())
		})

		ginkgo.It("should allow an approver of the expense", func() {
			res.IsApprover = true
			gomega.Expect(policy.CanViewExpense(&User{ID: 11, CompanyID: 1, Role: userDatamodel.RoleEmployee}, res)).To(gomega.Succeed())
		})

		ginkgo.It("should allow company managers and admins", func() {
			gomega.Expect(policy.CanViewExpense(&User{ID: 12, CompanyID: 1, Role: userDatamodel.RoleManager}, res)).To(gomega.Succeed())
			gomega.Expect(policy.CanViewExpense(&User{ID: 13, CompanyID: 1, Role: userDatamodel.RoleAdmin}, res)).To(gomega.Succeed())
		})

		ginkgo.It("should deny other employees", func() {
			err := policy.CanViewExpense(&User{ID: 11, CompanyID: 1, Role: userDatamodel.RoleEmployee}, res)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUnauthorizedAccess))
		})

		ginkgo.It("should deny admins of another company", func() {
			err := policy.CanViewExpense(&User{ID: 13, CompanyID: 2, Role: userDatamodel.RoleAdmin}, res)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrCrossCompany))
		})
	})

	ginkgo.Describe("CanModifyExpense", func() {
		ginkgo.It("should allow only the owner", func() {
			gomega.Expect(policy.CanModifyExpense(&User{ID: 10, CompanyID: 1}, res)).To(gomega.Succeed())
			gomega.Expect(policy.CanModifyExpense(&User{ID: 13, CompanyID: 1, Role: userDatamodel.RoleAdmin}, res)).
				To(gomega.MatchError(internal.ErrUnauthorizedAccess))
		})
	})
})

var _ = ginkgo.Describe("SQLExpenseAttributeLoader", func() {
	var (
		gdb     *gorm.DB
		loader  *SQLExpenseAttributeLoader
		handler *Handler
		expense *expenseDatamodel.Expense
	)

	ginkgo.BeforeEach(func() {
		var err error
		gdb, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		sqlDB, err := gdb.DB()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		gomega.Expect(gdb.AutoMigrate(&expenseDatamodel.Expense{}, &approvalDatamodel.ExpenseApproval{})).To(gomega.Succeed())

		expense = &expenseDatamodel.Expense{
			CompanyID:       1,
			EmployeeID:      10,
			Amount:          decimal.NewFromInt(50),
			CurrencyCode:    "USD",
			ConvertedAmount: decimal.NewFromInt(50),
			Category:        "Travel",
			Description:     "taxi",
			ExpenseDate:     time.Now(),
			Status:          expenseDatamodel.StatusPending,
		}
		gomega.Expect(gdb.Create(expense).Error).To(gomega.Succeed())
		gomega.Expect(gdb.Create(&approvalDatamodel.ExpenseApproval{
			ExpenseID: expense.ID, ApproverID: 20, StepOrder: 1, Status: approvalDatamodel.StatusPending,
		}).Error).To(gomega.Succeed())

		loader = NewSQLExpenseAttributeLoader(sqlx.NewDb(sqlDB, "sqlite3"))
		handler = NewHandler(nil)
	})

	ginkgo.It("should load owner, company and approver attributes", func() {
		attrs, err := loader.Load(context.Background(), expense.ID, 20)

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(attrs.CompanyID).To(gomega.Equal(int64(1)))
		gomega.Expect(attrs.EmployeeID).To(gomega.Equal(int64(10)))
		gomega.Expect(attrs.IsApprover).To(gomega.BeTrue())

		attrs, err = loader.Load(context.Background(), expense.ID, 21)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(attrs.IsApprover).To(gomega.BeFalse())
	})

	ginkgo.It("should map a missing expense to ErrExpenseNotFound", func() {
		_, err := loader.Load(context.Background(), 999, 20)
		gomega.Expect(err).To(gomega.MatchError(internal.ErrExpenseNotFound))
	})

	ginkgo.It("should gate the wrapped handler through the policy", func() {
		r := chi.NewRouter()
		r.With(handler.RequireCanViewExpense(loader, &ABACPolicy{})).
			Get("/expenses/{id}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

		serve := func(u *User) int {
			req := httptest.NewRequest(http.MethodGet, "/expenses/1", nil)
			req = req.WithContext(ContextWithUser(req.Context(), u))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			return rec.Code
		}

		gomega.Expect(serve(&User{ID: 20, CompanyID: 1, Role: userDatamodel.RoleEmployee})).To(gomega.Equal(http.StatusOK))
		gomega.Expect(serve(&User{ID: 21, CompanyID: 1, Role: userDatamodel.RoleEmployee})).To(gomega.Equal(http.StatusForbidden))
		gomega.Expect(serve(&User{ID: 30, CompanyID: 2, Role: userDatamodel.RoleAdmin})).To(gomega.Equal(http.StatusForbidden))
	})
})
