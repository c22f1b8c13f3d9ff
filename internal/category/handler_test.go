package category_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"

	"github.com/frahmantamala/expense-approval/internal/auth"
	"github.com/frahmantamala/expense-approval/internal/category"
	categoryPostgres "github.com/frahmantamala/expense-approval/internal/category/postgres"
	"github.com/frahmantamala/expense-approval/internal/core/database/sqlitetest"
	categoryDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/category"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-approval/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Category Handler Integration", func() {
	var (
		db      *gorm.DB
		repo    category.RepositoryAPI
		service *category.Service
		handler *category.Handler
		slogger *slog.Logger
		admin   *auth.User
	)

	BeforeEach(func() {
		var err error
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err = sqlitetest.Open()
		Expect(err).NotTo(HaveOccurred())

		repo = categoryPostgres.NewCategoryRepository(db)
		service = category.NewService(repo, slogger)
		baseHandler := &transport.BaseHandler{Logger: slogger}
		handler = category.NewHandler(baseHandler, service)
		admin = &auth.User{ID: 1, CompanyID: 1, Role: userDatamodel.RoleAdmin}

		for _, name := range []string{"Meals", "Travel"} {
			Expect(db.Create(&categoryDatamodel.ExpenseCategory{Name: name, Description: name + " expenses", IsActive: true}).Error).To(Succeed())
		}

		inactiveCategory := &categoryDatamodel.ExpenseCategory{Name: "Legacy", Description: "Inactive category", IsActive: true}
		Expect(db.Create(inactiveCategory).Error).To(Succeed())
		Expect(db.Model(inactiveCategory).Update("is_active", false).Error).To(Succeed())
	})

	request := func(method, path, body string, user *auth.User) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Get("/categories", handler.GetCategories)
		r.Post("/categories", handler.CreateCategory)
		r.Delete("/categories/{id}", handler.DeleteCategory)

		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if user != nil {
			req = req.WithContext(auth.ContextWithUser(req.Context(), user))
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	It("should handle GET /categories request successfully", func() {
		w := request(http.MethodGet, "/categories", "", admin)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

		var response category.CategoriesResponse
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())

		names := make([]string, len(response.Categories))
		for i, cat := range response.Categories {
			names[i] = cat.Name
		}
		Expect(names).To(Equal([]string{"Meals", "Travel"}))
	})

	It("should require an authenticated user", func() {
		w := request(http.MethodGet, "/categories", "", nil)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("should create and then hide a company category", func() {
		w := request(http.MethodPost, "/categories", `{"name":"Lab supplies"}`, admin)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var created category.CategoryResponse
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())
		Expect(created.Global).To(BeFalse())

		w = request(http.MethodGet, "/categories", "", &auth.User{ID: 9, CompanyID: 2, Role: userDatamodel.RoleEmployee})
		Expect(w.Body.String()).NotTo(ContainSubstring("Lab supplies"))

		w = request(http.MethodDelete, "/categories/"+strconv.FormatInt(created.ID, 10), "", admin)
		Expect(w.Code).To(Equal(http.StatusNoContent))

		w = request(http.MethodGet, "/categories", "", admin)
		Expect(w.Body.String()).NotTo(ContainSubstring("Lab supplies"))
	})

	It("should forbid employees from creating categories", func() {
		employee := &auth.User{ID: 2, CompanyID: 1, Role: userDatamodel.RoleEmployee}
		w := request(http.MethodPost, "/categories", `{"name":"Snacks"}`, employee)
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})
})
