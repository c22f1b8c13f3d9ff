package approval_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	"github.com/frahmantamala/expense-approval/internal/approval/postgres"
	"github.com/frahmantamala/expense-approval/internal/core/database"
	"github.com/frahmantamala/expense-approval/internal/core/database/sqlitetest"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	companyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/company"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-approval/internal/core/events"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// flakyDirectory fails the n-th lookup.
type flakyDirectory struct {
	approval.ApproverDirectory
	calls  int
	failOn int
}

func (f *flakyDirectory) FindUserByRole(ctx context.Context, companyID int64, role string) (int64, bool, error) {
	f.calls++
	if f.calls == f.failOn {
		return 0, false, errors.New("directory unavailable")
	}
	return f.ApproverDirectory.FindUserByRole(ctx, companyID, role)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	db        *gorm.DB
	tx        *database.Transactor
	repo      approval.RepositoryAPI
	publisher *recordingPublisher
	company   *companyDatamodel.Company
	admin     *userDatamodel.User
	manager   *userDatamodel.User
	u7        *userDatamodel.User
	employee  *userDatamodel.User
}

func newFixture() *fixture {
	db, err := sqlitetest.Open()
	gomega.Expect(err).ToNot(gomega.HaveOccurred())

	f := &fixture{
		db:        db,
		tx:        database.NewTransactor(db),
		repo:      postgres.NewApprovalRepository(db),
		publisher: &recordingPublisher{},
	}

	f.company = &companyDatamodel.Company{Name: "Acme", Country: "United States", CurrencyCode: "USD", CurrencySymbol: "$"}
	gomega.Expect(db.Create(f.company).Error).To(gomega.Succeed())

	f.admin = f.user("admin@acme.test", userDatamodel.RoleAdmin)
	f.manager = f.user("manager@acme.test", userDatamodel.RoleManager)
	f.u7 = f.user("u7@acme.test", userDatamodel.RoleEmployee)
	f.employee = f.user("employee@acme.test", userDatamodel.RoleEmployee)
	return f
}

func (f *fixture) user(email, role string) *userDatamodel.User {
	return f.userIn(f.company.ID, email, role)
}

func (f *fixture) userIn(companyID int64, email, role string) *userDatamodel.User {
	u := &userDatamodel.User{CompanyID: companyID, Email: email, Name: email, PasswordHash: "x", Role: role, IsActive: true}
	gomega.Expect(f.db.Create(u).Error).To(gomega.Succeed())
	return u
}

func (f *fixture) service(dir approval.ApproverDirectory, opts approval.Options) *approval.Service {
	if dir == nil {
		dir = postgres.NewDirectory(f.db)
	}
	expander := approval.NewExpander(dir, approval.PolicySkip, approval.ManagerByRelation, testLogger())
	return approval.NewService(f.repo, f.tx, expander, f.publisher, nil, opts, testLogger())
}

func (f *fixture) draft(companyID, employeeID int64) *expenseDatamodel.Expense {
	exp := &expenseDatamodel.Expense{
		CompanyID:       companyID,
		EmployeeID:      employeeID,
		Amount:          decimal.RequireFromString("120.50"),
		CurrencyCode:    "USD",
		ConvertedAmount: decimal.RequireFromString("120.50"),
		Category:        "Travel",
		Description:     "client visit",
		ExpenseDate:     time.Now().Add(-24 * time.Hour),
		Status:          expenseDatamodel.StatusDraft,
	}
	gomega.Expect(f.db.Create(exp).Error).To(gomega.Succeed())
	return exp
}

// submit moves exp to PENDING and expands its flow in one transaction.
func (f *fixture) submit(svc *approval.Service, exp *expenseDatamodel.Expense) error {
	return f.tx.Run(context.Background(), func(ctx context.Context) error {
		err := database.Conn(ctx, f.db).Model(&expenseDatamodel.Expense{}).
			Where("id = ?", exp.ID).
			Update("status", expenseDatamodel.StatusPending).Error
		if err != nil {
			return err
		}
		exp.Status = expenseDatamodel.StatusPending
		_, err = svc.ExpandForExpense(ctx, exp)
		return err
	})
}

func (f *fixture) rows(expenseID int64) []*approvalDatamodel.ExpenseApproval {
	rows, err := f.repo.ListApprovals(context.Background(), expenseID)
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	return rows
}

func (f *fixture) status(expenseID int64) string {
	var exp expenseDatamodel.Expense
	gomega.Expect(f.db.First(&exp, expenseID).Error).To(gomega.Succeed())
	return exp.Status
}

func actorOf(u *userDatamodel.User) internal.Actor {
	return internal.Actor{UserID: u.ID, CompanyID: u.CompanyID, Role: u.Role}
}

func decision(status string) approval.DecisionDTO {
	return approval.DecisionDTO{Status: status}
}

var _ = ginkgo.Describe("Service", func() {
	var (
		f   *fixture
		svc *approval.Service
		ctx context.Context
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
		svc = f.service(nil, approval.Options{})
	})

	ginkgo.Describe("two-step flow (role MANAGER, specific user U7)", func() {
		var exp *expenseDatamodel.Expense

		ginkgo.BeforeEach(func() {
			role := userDatamodel.RoleManager
			gomega.Expect(f.repo.CreateFlows(ctx, []*approvalDatamodel.Flow{
				{CompanyID: f.company.ID, StepOrder: 1, ApproverRole: &role},
				{CompanyID: f.company.ID, StepOrder: 2, SpecificUserID: &f.u7.ID},
			})).To(gomega.Succeed())

			exp = f.draft(f.company.ID, f.employee.ID)
			gomega.Expect(f.submit(svc, exp)).To(gomega.Succeed())
		})

		ginkgo.It("should expand into two pending rows", func() {
			rows := f.rows(exp.ID)

			gomega.Expect(rows).To(gomega.HaveLen(2))
			gomega.Expect(rows[0].ApproverID).To(gomega.Equal(f.manager.ID))
			gomega.Expect(rows[1].ApproverID).To(gomega.Equal(f.u7.ID))
			for _, r := range rows {
				gomega.Expect(r.Status).To(gomega.Equal(approvalDatamodel.StatusPending))
			}
			gomega.Expect(f.status(exp.ID)).To(gomega.Equal(expenseDatamodel.StatusPending))
		})

		ginkgo.It("should stay pending after the manager approves, then reject when U7 rejects", func() {
			// When
			res, err := svc.RecordDecision(ctx, actorOf(f.manager), exp.ID, decision(approvalDatamodel.StatusApproved))

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.ExpenseStatus).To(gomega.Equal(expenseDatamodel.StatusPending))
			gomega.Expect(res.Approval.ApprovedAt).ToNot(gomega.BeNil())
			gomega.Expect(f.status(exp.ID)).To(gomega.Equal(expenseDatamodel.StatusPending))

			// When
			comments := "not a business trip"
			res, err = svc.RecordDecision(ctx, actorOf(f.u7), exp.ID, approval.DecisionDTO{Status: approvalDatamodel.StatusRejected, Comments: &comments})

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.ExpenseStatus).To(gomega.Equal(expenseDatamodel.StatusRejected))
			gomega.Expect(res.Approval.ApprovedAt).To(gomega.BeNil())
			gomega.Expect(f.status(exp.ID)).To(gomega.Equal(expenseDatamodel.StatusRejected))

			rows := f.rows(exp.ID)
			gomega.Expect(*rows[1].Comments).To(gomega.Equal(comments))
			gomega.Expect(rows[1].ApprovedAt).To(gomega.BeNil())
			gomega.Expect(f.publisher.types()).To(gomega.Equal([]string{events.EventTypeExpenseResolved}))
		})

		ginkgo.It("should approve once both approvers approved", func() {
			_, err := svc.RecordDecision(ctx, actorOf(f.u7), exp.ID, decision(approvalDatamodel.StatusApproved))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			res, err := svc.RecordDecision(ctx, actorOf(f.manager), exp.ID, decision(approvalDatamodel.StatusApproved))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.ExpenseStatus).To(gomega.Equal(expenseDatamodel.StatusApproved))

			var stored expenseDatamodel.Expense
			gomega.Expect(f.db.First(&stored, exp.ID).Error).To(gomega.Succeed())
			gomega.Expect(stored.ResolvedAt).ToNot(gomega.BeNil())
		})

		ginkgo.It("should reject a decision by a user without a pending row", func() {
			_, err := svc.RecordDecision(ctx, actorOf(f.employee), exp.ID, decision(approvalDatamodel.StatusApproved))
			gomega.Expect(err).To(gomega.MatchError(internal.ErrApprovalNotFound))
			gomega.Expect(f.rows(exp.ID)).To(gomega.HaveLen(2))
		})

		ginkgo.It("should reject a second decision by the same approver", func() {
			_, err := svc.RecordDecision(ctx, actorOf(f.manager), exp.ID, decision(approvalDatamodel.StatusApproved))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = svc.RecordDecision(ctx, actorOf(f.manager), exp.ID, decision(approvalDatamodel.StatusRejected))
			gomega.Expect(err).To(gomega.MatchError(internal.ErrApprovalNotFound))
			gomega.Expect(f.status(exp.ID)).To(gomega.Equal(expenseDatamodel.StatusPending))
		})

		ginkgo.It("should refuse decisions once the expense is resolved", func() {
			_, err := svc.RecordDecision(ctx, actorOf(f.u7), exp.ID, decision(approvalDatamodel.StatusRejected))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = svc.RecordDecision(ctx, actorOf(f.manager), exp.ID, decision(approvalDatamodel.StatusApproved))
			gomega.Expect(errors.Is(err, internal.ErrInvalidState)).To(gomega.BeTrue())
		})

		ginkgo.It("should validate the decision", func() {
			_, err := svc.RecordDecision(ctx, actorOf(f.manager), exp.ID, decision("MAYBE"))

			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Type).To(gomega.Equal(internal.ErrorTypeValidation))
		})

		ginkgo.It("should list pending approvals with display context", func() {
			pending, err := svc.PendingFor(ctx, actorOf(f.u7))

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(pending).To(gomega.HaveLen(1))
			gomega.Expect(pending[0].Expense.ID).To(gomega.Equal(exp.ID))
			gomega.Expect(pending[0].Expense.Amount.Equal(decimal.RequireFromString("120.50"))).To(gomega.BeTrue())
			gomega.Expect(pending[0].Employee.Email).To(gomega.Equal(f.employee.Email))
			gomega.Expect(pending[0].Company.CurrencyCode).To(gomega.Equal("USD"))
			gomega.Expect(pending[0].StepOrder).To(gomega.Equal(2))

			_, err = svc.RecordDecision(ctx, actorOf(f.u7), exp.ID, decision(approvalDatamodel.StatusApproved))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			pending, err = svc.PendingFor(ctx, actorOf(f.u7))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(pending).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("company without a flow", func() {
		ginkgo.It("should create exactly one row for the admin", func() {
			exp := f.draft(f.company.ID, f.employee.ID)
			gomega.Expect(f.submit(svc, exp)).To(gomega.Succeed())

			rows := f.rows(exp.ID)
			gomega.Expect(rows).To(gomega.HaveLen(1))
			gomega.Expect(rows[0].ApproverID).To(gomega.Equal(f.admin.ID))
		})

		ginkgo.It("should leave the expense pending with no rows when there is no admin", func() {
			other := &companyDatamodel.Company{Name: "Solo", Country: "Japan", CurrencyCode: "JPY"}
			gomega.Expect(f.db.Create(other).Error).To(gomega.Succeed())
			loner := f.userIn(other.ID, "loner@solo.test", userDatamodel.RoleEmployee)

			exp := f.draft(other.ID, loner.ID)
			gomega.Expect(f.submit(svc, exp)).To(gomega.Succeed())

			gomega.Expect(f.rows(exp.ID)).To(gomega.BeEmpty())
			gomega.Expect(f.status(exp.ID)).To(gomega.Equal(expenseDatamodel.StatusPending))
		})
	})

	ginkgo.Describe("manager resolution", func() {
		ginkgo.It("should route manager steps to the designated manager", func() {
			other := f.user("manager2@acme.test", userDatamodel.RoleManager)
			gomega.Expect(f.db.Create(&userDatamodel.ManagerRelation{
				CompanyID: f.company.ID, EmployeeID: f.employee.ID, ManagerID: other.ID,
			}).Error).To(gomega.Succeed())
			gomega.Expect(f.repo.CreateFlows(ctx, []*approvalDatamodel.Flow{
				{CompanyID: f.company.ID, StepOrder: 1, IsManagerApprover: true},
			})).To(gomega.Succeed())

			exp := f.draft(f.company.ID, f.employee.ID)
			gomega.Expect(f.submit(svc, exp)).To(gomega.Succeed())

			rows := f.rows(exp.ID)
			gomega.Expect(rows).To(gomega.HaveLen(1))
			gomega.Expect(rows[0].ApproverID).To(gomega.Equal(other.ID))
		})
	})

	ginkgo.Describe("atomic expansion", func() {
		ginkgo.It("should commit neither the status change nor partial rows when a lookup fails", func() {
			role := userDatamodel.RoleManager
			admin := userDatamodel.RoleAdmin
			gomega.Expect(f.repo.CreateFlows(ctx, []*approvalDatamodel.Flow{
				{CompanyID: f.company.ID, StepOrder: 1, ApproverRole: &role},
				{CompanyID: f.company.ID, StepOrder: 2, ApproverRole: &admin},
			})).To(gomega.Succeed())

			dir := &flakyDirectory{ApproverDirectory: postgres.NewDirectory(f.db), failOn: 2}
			flaky := f.service(dir, approval.Options{})

			exp := f.draft(f.company.ID, f.employee.ID)
			err := f.submit(flaky, exp)

			gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("directory unavailable")))
			gomega.Expect(f.status(exp.ID)).To(gomega.Equal(expenseDatamodel.StatusDraft))
			gomega.Expect(f.rows(exp.ID)).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("Override", func() {
		var exp *expenseDatamodel.Expense

		ginkgo.BeforeEach(func() {
			gomega.Expect(f.repo.CreateFlows(ctx, []*approvalDatamodel.Flow{
				{CompanyID: f.company.ID, StepOrder: 1, SpecificUserID: &f.manager.ID},
			})).To(gomega.Succeed())
			exp = f.draft(f.company.ID, f.employee.ID)
			gomega.Expect(f.submit(svc, exp)).To(gomega.Succeed())
		})

		ginkgo.It("should set the status, resolve outstanding rows and append a sentinel row", func() {
			res, err := svc.Override(ctx, actorOf(f.admin), exp.ID, approval.OverrideDTO{Status: approvalDatamodel.StatusApproved})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.ExpenseStatus).To(gomega.Equal(expenseDatamodel.StatusApproved))
			gomega.Expect(res.ResolvedPending).To(gomega.Equal(int64(1)))
			gomega.Expect(f.status(exp.ID)).To(gomega.Equal(expenseDatamodel.StatusApproved))

			rows := f.rows(exp.ID)
			gomega.Expect(rows).To(gomega.HaveLen(2))
			gomega.Expect(rows[0].Status).To(gomega.Equal(approvalDatamodel.StatusApproved))
			gomega.Expect(rows[0].Comments).ToNot(gomega.BeNil())
			gomega.Expect(rows[0].ApprovedAt).ToNot(gomega.BeNil())
			gomega.Expect(rows[1].StepOrder).To(gomega.Equal(approvalDatamodel.OverrideStepOrder))
			gomega.Expect(rows[1].ApproverID).To(gomega.Equal(f.admin.ID))
			for _, r := range rows {
				gomega.Expect(r.Status).ToNot(gomega.Equal(approvalDatamodel.StatusPending))
			}
			gomega.Expect(f.publisher.types()).To(gomega.ContainElement(events.EventTypeExpenseResolved))
		})

		ginkgo.It("should record every override even when the admin already has a row", func() {
			for _, status := range []string{approvalDatamodel.StatusRejected, approvalDatamodel.StatusApproved} {
				_, err := svc.Override(ctx, actorOf(f.admin), exp.ID, approval.OverrideDTO{Status: status})
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
			}

			overrides := 0
			for _, r := range f.rows(exp.ID) {
				if r.IsOverride() {
					overrides++
				}
			}
			gomega.Expect(overrides).To(gomega.Equal(2))
			gomega.Expect(f.status(exp.ID)).To(gomega.Equal(expenseDatamodel.StatusApproved))
		})

		ginkgo.It("should use the admin's comments when given", func() {
			note := "approved offline"
			_, err := svc.Override(ctx, actorOf(f.admin), exp.ID, approval.OverrideDTO{Status: approvalDatamodel.StatusRejected, Comments: &note})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			rows := f.rows(exp.ID)
			gomega.Expect(*rows[0].Comments).To(gomega.Equal(note))
			gomega.Expect(*rows[1].Comments).To(gomega.Equal(note))
		})

		ginkgo.It("should forbid non-admins and other companies without changing anything", func() {
			_, err := svc.Override(ctx, actorOf(f.manager), exp.ID, approval.OverrideDTO{Status: approvalDatamodel.StatusApproved})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInsufficientRole))

			stranger := internal.Actor{UserID: 999, CompanyID: f.company.ID + 1, Role: userDatamodel.RoleAdmin}
			_, err = svc.Override(ctx, stranger, exp.ID, approval.OverrideDTO{Status: approvalDatamodel.StatusApproved})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrCrossCompany))

			gomega.Expect(f.status(exp.ID)).To(gomega.Equal(expenseDatamodel.StatusPending))
			gomega.Expect(f.rows(exp.ID)).To(gomega.HaveLen(1))
		})

		ginkgo.It("should refuse to override a draft", func() {
			draft := f.draft(f.company.ID, f.employee.ID)

			_, err := svc.Override(ctx, actorOf(f.admin), draft.ID, approval.OverrideDTO{Status: approvalDatamodel.StatusApproved})
			gomega.Expect(errors.Is(err, internal.ErrInvalidState)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("rule-driven aggregation", func() {
		ginkgo.It("should apply an active percentage rule when enabled", func() {
			gomega.Expect(f.repo.CreateFlows(ctx, []*approvalDatamodel.Flow{
				{CompanyID: f.company.ID, StepOrder: 1, SpecificUserID: &f.manager.ID},
				{CompanyID: f.company.ID, StepOrder: 2, SpecificUserID: &f.u7.ID},
			})).To(gomega.Succeed())
			pct := 50
			gomega.Expect(f.repo.CreateRule(ctx, &approvalDatamodel.Rule{
				CompanyID: f.company.ID, Name: "half", RuleType: approvalDatamodel.RuleTypePercentage, PercentageThreshold: &pct, IsActive: true,
			})).To(gomega.Succeed())

			withRules := f.service(nil, approval.Options{ApplyRules: true})
			exp := f.draft(f.company.ID, f.employee.ID)
			gomega.Expect(f.submit(withRules, exp)).To(gomega.Succeed())

			res, err := withRules.RecordDecision(ctx, actorOf(f.manager), exp.ID, decision(approvalDatamodel.StatusApproved))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.ExpenseStatus).To(gomega.Equal(expenseDatamodel.StatusApproved))
		})

		ginkgo.It("should keep unanimous veto in charge when the only rule is inactive", func() {
			role := userDatamodel.RoleManager
			gomega.Expect(f.repo.CreateFlows(ctx, []*approvalDatamodel.Flow{
				{CompanyID: f.company.ID, StepOrder: 1, ApproverRole: &role},
				{CompanyID: f.company.ID, StepOrder: 2, SpecificUserID: &f.u7.ID},
			})).To(gomega.Succeed())

			inactive := false
			rule, err := svc.CreateRule(ctx, actorOf(f.admin), approval.CreateRuleDTO{
				Name: "manager decides", RuleType: approvalDatamodel.RuleTypeSpecific, SpecificApproverID: &f.manager.ID, IsActive: &inactive,
			})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rule.IsActive).To(gomega.BeFalse())

			var stored approvalDatamodel.Rule
			gomega.Expect(f.db.First(&stored, rule.ID).Error).To(gomega.Succeed())
			gomega.Expect(stored.IsActive).To(gomega.BeFalse())

			withRules := f.service(nil, approval.Options{ApplyRules: true})
			exp := f.draft(f.company.ID, f.employee.ID)
			gomega.Expect(f.submit(withRules, exp)).To(gomega.Succeed())

			res, err := withRules.RecordDecision(ctx, actorOf(f.manager), exp.ID, decision(approvalDatamodel.StatusApproved))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.ExpenseStatus).To(gomega.Equal(expenseDatamodel.StatusPending))
			gomega.Expect(f.status(exp.ID)).To(gomega.Equal(expenseDatamodel.StatusPending))
		})
	})

	ginkgo.Describe("SetupDefaultFlow", func() {
		ginkgo.It("should create the default flow once", func() {
			flows, created, err := svc.SetupDefaultFlow(ctx, actorOf(f.admin), f.company.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(created).To(gomega.BeTrue())
			gomega.Expect(flows).To(gomega.HaveLen(2))
			gomega.Expect(flows[0].IsManagerApprover).To(gomega.BeTrue())
			gomega.Expect(*flows[1].ApproverRole).To(gomega.Equal(userDatamodel.RoleAdmin))

			again, created, err := svc.SetupDefaultFlow(ctx, actorOf(f.admin), f.company.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(created).To(gomega.BeFalse())
			gomega.Expect(again).To(gomega.HaveLen(2))
			gomega.Expect(again[0].ID).To(gomega.Equal(flows[0].ID))
		})

		ginkgo.It("should require an admin of that company", func() {
			_, _, err := svc.SetupDefaultFlow(ctx, actorOf(f.manager), f.company.ID)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInsufficientRole))

			_, _, err = svc.SetupDefaultFlow(ctx, actorOf(f.admin), f.company.ID+1)
			gomega.Expect(err).To(gomega.MatchError(internal.ErrCrossCompany))
		})
	})

	ginkgo.Describe("flow configuration", func() {
		ginkgo.It("should require exactly one selection mode", func() {
			role := userDatamodel.RoleManager
			_, err := svc.CreateFlow(ctx, actorOf(f.admin), approval.CreateFlowDTO{StepOrder: 1, ApproverRole: &role, IsManagerApprover: true})
			gomega.Expect(err).To(gomega.HaveOccurred())

			_, err = svc.CreateFlow(ctx, actorOf(f.admin), approval.CreateFlowDTO{StepOrder: 1})
			gomega.Expect(err).To(gomega.HaveOccurred())

			flow, err := svc.CreateFlow(ctx, actorOf(f.admin), approval.CreateFlowDTO{StepOrder: 1, ApproverRole: &role})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(flow.CompanyID).To(gomega.Equal(f.company.ID))
		})

		ginkgo.It("should reject specific users from another company", func() {
			other := &companyDatamodel.Company{Name: "Other", Country: "France", CurrencyCode: "EUR"}
			gomega.Expect(f.db.Create(other).Error).To(gomega.Succeed())
			outsider := f.userIn(other.ID, "out@other.test", userDatamodel.RoleManager)

			_, err := svc.CreateFlow(ctx, actorOf(f.admin), approval.CreateFlowDTO{StepOrder: 1, SpecificUserID: &outsider.ID})
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should update and delete steps within the company only", func() {
			flow, err := svc.CreateFlow(ctx, actorOf(f.admin), approval.CreateFlowDTO{StepOrder: 1, IsManagerApprover: true})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			step := 3
			updated, err := svc.UpdateFlow(ctx, actorOf(f.admin), flow.ID, approval.UpdateFlowDTO{StepOrder: &step, SpecificUserID: &f.u7.ID})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(updated.StepOrder).To(gomega.Equal(3))
			gomega.Expect(updated.IsManagerApprover).To(gomega.BeFalse())

			stranger := internal.Actor{UserID: 999, CompanyID: f.company.ID + 1, Role: userDatamodel.RoleAdmin}
			gomega.Expect(svc.DeleteFlow(ctx, stranger, flow.ID)).To(gomega.MatchError(internal.ErrFlowNotFound))
			gomega.Expect(svc.DeleteFlow(ctx, actorOf(f.admin), flow.ID)).To(gomega.Succeed())

			flows, err := svc.ListFlows(ctx, actorOf(f.admin))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(flows).To(gomega.BeEmpty())
		})

		ginkgo.It("should keep rule CRUD admin-only and validated", func() {
			_, err := svc.CreateRule(ctx, actorOf(f.manager), approval.CreateRuleDTO{Name: "r", RuleType: approvalDatamodel.RuleTypeSpecific})
			gomega.Expect(err).To(gomega.MatchError(internal.ErrInsufficientRole))

			_, err = svc.CreateRule(ctx, actorOf(f.admin), approval.CreateRuleDTO{Name: "r", RuleType: approvalDatamodel.RuleTypePercentage})
			gomega.Expect(err).To(gomega.HaveOccurred())

			inactive := false
			rule, err := svc.CreateRule(ctx, actorOf(f.admin), approval.CreateRuleDTO{
				Name: "cfo", RuleType: approvalDatamodel.RuleTypeSpecific, SpecificApproverID: &f.admin.ID, IsActive: &inactive,
			})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rule.IsActive).To(gomega.BeFalse())

			active, err := f.repo.GetActiveRule(ctx, f.company.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(active).To(gomega.BeNil())

			name := "cfo sign-off"
			on := true
			rule, err = svc.UpdateRule(ctx, actorOf(f.admin), rule.ID, approval.UpdateRuleDTO{Name: &name, IsActive: &on})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rule.Name).To(gomega.Equal(name))

			gomega.Expect(svc.DeleteRule(ctx, actorOf(f.admin), rule.ID)).To(gomega.Succeed())
			gomega.Expect(svc.DeleteRule(ctx, actorOf(f.admin), rule.ID)).To(gomega.MatchError(internal.ErrRuleNotFound))
		})
	})
})
