package company_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	approvalPostgres "github.com/frahmantamala/expense-approval/internal/approval/postgres"
	"github.com/frahmantamala/expense-approval/internal/company"
	"github.com/frahmantamala/expense-approval/internal/company/postgres"
	"github.com/frahmantamala/expense-approval/internal/core/database"
	"github.com/frahmantamala/expense-approval/internal/core/database/sqlitetest"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	companyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/company"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-approval/internal/currency"
	"github.com/frahmantamala/expense-approval/internal/user"
	userPostgres "github.com/frahmantamala/expense-approval/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeCountries struct {
	err error
}

func (f fakeCountries) LookupCountry(ctx context.Context, name string) (*currency.CountryInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	if strings.EqualFold(name, "indonesia") {
		return &currency.CountryInfo{Name: "Indonesia", CurrencyCode: "IDR", CurrencySymbol: "Rp"}, nil
	}
	return nil, internal.ErrCountryNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var _ = Describe("Service", func() {
	var (
		db  *gorm.DB
		ctx context.Context
		svc *company.Service
	)

	build := func(countries currency.CountryClient) *company.Service {
		tx := database.NewTransactor(db)
		users := user.NewService(userPostgres.NewUserRepository(db), tx, nil, bcrypt.MinCost, testLogger())
		expander := approval.NewExpander(approvalPostgres.NewDirectory(db), approval.PolicySkip, approval.ManagerByRelation, testLogger())
		flows := approval.NewService(approvalPostgres.NewApprovalRepository(db), tx, expander, nil, nil, approval.Options{}, testLogger())
		return company.NewService(postgres.NewCompanyRepository(db), tx, countries, users, flows, nil, testLogger())
	}

	signup := func() company.SignupDTO {
		return company.SignupDTO{
			CompanyName: "Nusantara Ltd",
			Country:     "indonesia",
			Name:        "Founder",
			Email:       "founder@nusantara.test",
			Password:    "super-secret",
		}
	}

	BeforeEach(func() {
		var err error
		db, err = sqlitetest.Open()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
		svc = build(fakeCountries{})
	})

	Describe("Signup", func() {
		It("should create the company, its admin and the default flow", func() {
			result, err := svc.Signup(ctx, signup())

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Company.CurrencyCode).To(Equal("IDR"))
			Expect(result.Company.CurrencySymbol).To(Equal("Rp"))
			Expect(result.Admin.Role).To(Equal(userDatamodel.RoleAdmin))
			Expect(result.Admin.CompanyID).To(Equal(result.Company.ID))

			var flows []approvalDatamodel.Flow
			Expect(db.Where("company_id = ?", result.Company.ID).Find(&flows).Error).To(Succeed())
			Expect(flows).To(HaveLen(2))
		})

		It("should report unknown countries", func() {
			dto := signup()
			dto.Country = "Atlantis"

			_, err := svc.Signup(ctx, dto)
			Expect(err).To(MatchError(internal.ErrCountryNotFound))
		})

		It("should map lookup outages to an upstream error", func() {
			svc = build(fakeCountries{err: errors.New("dial tcp: timeout")})

			_, err := svc.Signup(ctx, signup())

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusBadGateway))
		})

		It("should leave nothing behind when the admin cannot be created", func() {
			_, err := svc.Signup(ctx, signup())
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Signup(ctx, signup())
			Expect(err).To(MatchError(internal.ErrEmailTaken))

			var count int64
			Expect(db.Model(&companyDatamodel.Company{}).Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})
	})

	Describe("UpdateCurrency", func() {
		var actor internal.Actor

		BeforeEach(func() {
			result, err := svc.Signup(ctx, signup())
			Expect(err).NotTo(HaveOccurred())
			actor = internal.Actor{UserID: result.Admin.ID, CompanyID: result.Company.ID, Role: result.Admin.Role}
		})

		It("should switch the company currency", func() {
			symbol := "$"
			c, err := svc.UpdateCurrency(ctx, actor, company.UpdateCurrencyDTO{CurrencyCode: "usd", CurrencySymbol: &symbol})

			Expect(err).NotTo(HaveOccurred())
			Expect(c.CurrencyCode).To(Equal("USD"))

			stored, err := svc.GetCompany(ctx, actor)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.CurrencyCode).To(Equal("USD"))
			Expect(stored.CurrencySymbol).To(Equal("$"))
		})

		It("should be admin only", func() {
			actor.Role = userDatamodel.RoleManager
			_, err := svc.UpdateCurrency(ctx, actor, company.UpdateCurrencyDTO{CurrencyCode: "USD"})
			Expect(err).To(MatchError(internal.ErrInsufficientRole))
		})

		It("should validate the code", func() {
			_, err := svc.UpdateCurrency(ctx, actor, company.UpdateCurrencyDTO{CurrencyCode: "DOLLAR"})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Handler", func() {
		It("should sign up over HTTP", func() {
			body := `{"company_name":"Nusantara Ltd","country":"Indonesia","name":"Founder","email":"f@n.test","password":"super-secret"}`
			rec := httptest.NewRecorder()
			company.NewHandler(svc).Signup(rec, httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body)))

			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(rec.Body.String()).To(ContainSubstring(`"currency_code":"IDR"`))
			Expect(rec.Body.String()).NotTo(ContainSubstring("super-secret"))
		})

		It("should reject incomplete signups", func() {
			rec := httptest.NewRecorder()
			company.NewHandler(svc).Signup(rec, httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(`{"email":"x"}`)))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
