package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-approval/internal/approval"
	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/category"
	"github.com/frahmantamala/expense-approval/internal/company"
	"github.com/frahmantamala/expense-approval/internal/currency"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"github.com/frahmantamala/expense-approval/internal/ocr"
	"github.com/frahmantamala/expense-approval/internal/transport/middleware"
	"github.com/frahmantamala/expense-approval/internal/transport/swagger"
	"github.com/frahmantamala/expense-approval/internal/user"
	"github.com/frahmantamala/expense-approval/pkg/metrics"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups the domain handlers mounted under /api/v1. Nil handlers
// leave their routes unregistered.
type Handlers struct {
	Auth       *auth.Handler
	Users      *user.Handler
	Company    *company.Handler
	Expenses   *expense.Handler
	Approvals  *approval.Handler
	Categories *category.Handler
	Currency   *currency.Handler
	OCR        *ocr.Handler
}

type Options struct {
	DB             Pinger
	RBAC           *auth.RBACAuthorization
	ExpenseAccess  auth.ExpenseAttributeLoader
	Metrics        *metrics.Metrics
	MetricsPath    string
	AllowedOrigins string
	OpenAPI        []byte
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options, logger *slog.Logger) {
	healthHandler := NewHealthHandler(opts.DB)

	rbac := opts.RBAC
	if rbac == nil {
		rbac = auth.NewRBACAuthorization(auth.NewPermissionChecker(), logger)
	}
	abac := &auth.ABACPolicy{}

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(opts.Metrics.Middleware)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, opts.Metrics.Handler())
	}

	if len(opts.OpenAPI) > 0 {
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(opts.OpenAPI)
		})
		router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", h.Auth.Login)
				sr.Post("/refresh", h.Auth.RefreshToken)
				sr.With(h.Auth.AuthMiddleware).Post("/logout", h.Auth.Logout)
				if h.Company != nil {
					sr.Post("/signup", h.Company.Signup)
				}
			})
		}

		if h.Auth == nil {
			return
		}

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.Users != nil {
				pr.Get("/users/me", h.Users.GetCurrentUser)
				pr.Post("/users/me/password", h.Users.ChangePassword)

				pr.Route("/users", func(ur chi.Router) {
					ur.Get("/", h.Users.ListUsers)
					ur.Get("/{id}", h.Users.GetUser)
					ur.Get("/{id}/managers", h.Users.ListManagers)

					ur.Group(func(ar chi.Router) {
						ar.Use(rbac.RequirePermission(auth.PermissionManageUsers))
						ar.Post("/", h.Users.CreateUser)
						ar.Patch("/{id}", h.Users.UpdateUser)
						ar.Post("/{id}/managers", h.Users.AddManager)
						ar.Delete("/{id}/managers/{managerId}", h.Users.RemoveManager)
					})
				})
			}

			if h.Company != nil {
				pr.Get("/company", h.Company.GetCompany)
				pr.With(rbac.RequirePermission(auth.PermissionManageCompany)).
					Patch("/company/currency", h.Company.UpdateCurrency)
			}

			if h.Categories != nil {
				pr.Get("/categories", h.Categories.GetCategories)
				pr.Group(func(ar chi.Router) {
					ar.Use(rbac.RequireAdmin())
					ar.Post("/categories", h.Categories.CreateCategory)
					ar.Delete("/categories/{id}", h.Categories.DeleteCategory)
				})
			}

			if h.Currency != nil {
				pr.Get("/currencies/rates", h.Currency.GetRates)
			}

			if h.Expenses != nil {
				pr.Route("/expenses", func(er chi.Router) {
					er.Post("/", h.Expenses.CreateExpense)
					er.Get("/", h.Expenses.ListExpenses)
					if h.OCR != nil {
						er.Post("/ocr", h.OCR.ScanReceipt)
					}
					er.Get("/{id}", h.Expenses.GetExpense)
					er.Patch("/{id}", h.Expenses.UpdateExpense)
					er.Delete("/{id}", h.Expenses.DeleteExpense)
					er.Post("/{id}/submit", h.Expenses.SubmitExpense)

					if h.Approvals != nil && opts.ExpenseAccess != nil {
						er.With(h.Auth.RequireCanViewExpense(opts.ExpenseAccess, abac)).
							Get("/{id}/approvals", h.Approvals.ExpenseTrail)
					}

					er.With(rbac.RequirePermission(auth.PermissionOverrideApprovals)).
						Patch("/{id}/override-approval", h.Expenses.OverrideApproval)
				})
			}

			if h.Approvals != nil {
				pr.Route("/approvals", func(ar chi.Router) {
					ar.Get("/pending", h.Approvals.Pending)
					ar.Post("/{expenseId}/approve", h.Approvals.Decide)

					ar.Group(func(fr chi.Router) {
						fr.Use(rbac.RequirePermission(auth.PermissionManageApprovalFlows))
						fr.Post("/setup-flow/{companyId}", h.Approvals.SetupFlow)

						fr.Get("/flows", h.Approvals.ListFlows)
						fr.Post("/flows", h.Approvals.CreateFlow)
						fr.Patch("/flows/{id}", h.Approvals.UpdateFlow)
						fr.Delete("/flows/{id}", h.Approvals.DeleteFlow)

						fr.Get("/rules", h.Approvals.ListRules)
						fr.Post("/rules", h.Approvals.CreateRule)
						fr.Patch("/rules/{id}", h.Approvals.UpdateRule)
						fr.Delete("/rules/{id}", h.Approvals.DeleteRule)
					})
				})
			}
		})
	})
}
