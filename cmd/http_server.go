package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/expense-approval/api"
	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	approvalPostgres "github.com/frahmantamala/expense-approval/internal/approval/postgres"
	"github.com/frahmantamala/expense-approval/internal/auth"
	authPostgres "github.com/frahmantamala/expense-approval/internal/auth/postgres"
	"github.com/frahmantamala/expense-approval/internal/category"
	categoryPostgres "github.com/frahmantamala/expense-approval/internal/category/postgres"
	"github.com/frahmantamala/expense-approval/internal/company"
	companyPostgres "github.com/frahmantamala/expense-approval/internal/company/postgres"
	"github.com/frahmantamala/expense-approval/internal/core/database"
	"github.com/frahmantamala/expense-approval/internal/core/events"
	"github.com/frahmantamala/expense-approval/internal/currency"
	currencyPostgres "github.com/frahmantamala/expense-approval/internal/currency/postgres"
	"github.com/frahmantamala/expense-approval/internal/expense"
	expensePostgres "github.com/frahmantamala/expense-approval/internal/expense/postgres"
	"github.com/frahmantamala/expense-approval/internal/notification"
	"github.com/frahmantamala/expense-approval/internal/ocr"
	"github.com/frahmantamala/expense-approval/internal/transport"
	"github.com/frahmantamala/expense-approval/internal/transport/rest"
	"github.com/frahmantamala/expense-approval/internal/user"
	userPostgres "github.com/frahmantamala/expense-approval/internal/user/postgres"
	"github.com/frahmantamala/expense-approval/pkg/logger"
	"github.com/frahmantamala/expense-approval/pkg/metrics"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Router   *chi.Mux
	EventBus *events.EventBus
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		waitForEvents(ctx, deps.EventBus, deps.Logger)
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

// waitForEvents lets in-flight notifications finish before the pool closes.
func waitForEvents(ctx context.Context, bus *events.EventBus, lg *slog.Logger) {
	done := make(chan struct{})
	go func() {
		bus.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		lg.Warn("shutdown timeout reached with event handlers still running")
	}
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config
	db := deps.Gorm
	lg := deps.Logger
	tx := database.NewTransactor(db)

	if _, err := api.Load(context.Background()); err != nil {
		return err
	}

	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.AccessTokenSecret,
		cfg.Security.RefreshTokenSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authPostgres.NewRepository(db), tokens, cfg.Security.BCryptCost, lg)

	userRepo := userPostgres.NewUserRepository(db)
	userService := user.NewService(userRepo, tx, deps.EventBus, cfg.Security.BCryptCost, lg)

	expander := approval.NewExpander(
		approvalPostgres.NewDirectory(db),
		approval.UnresolvedApproverPolicy(cfg.Approval.UnresolvedApproverPolicy),
		approval.ManagerResolution(cfg.Approval.ManagerResolution),
		lg,
	)
	approvalService := approval.NewService(
		approvalPostgres.NewApprovalRepository(db),
		tx,
		expander,
		deps.EventBus,
		deps.Metrics,
		approval.Options{ApplyRules: cfg.Approval.ApplyRules},
		lg,
	)

	client := currency.NewClient(currency.ClientConfig{
		RatesAPIURL:     cfg.Currency.RatesAPIURL,
		CountriesAPIURL: cfg.Currency.CountriesAPIURL,
		Timeout:         cfg.Currency.HTTPTimeout,
	}, lg)
	currencyService := currency.NewService(currencyPostgres.NewRateRepository(db), client, cfg.Currency.CacheTTL, deps.Metrics, lg)

	categoryService := category.NewService(categoryPostgres.NewCategoryRepository(db), lg)

	companyService := company.NewService(
		companyPostgres.NewCompanyRepository(db),
		tx,
		client,
		userService,
		approvalService,
		deps.EventBus,
		lg,
	)

	expenseService := expense.NewService(
		expensePostgres.NewExpenseRepository(db),
		tx,
		approvalService,
		currencyService,
		categoryService,
		deps.EventBus,
		lg,
	)

	ocrService := ocr.NewService(ocr.NewTesseractFactory(cfg.OCR.Command, cfg.OCR.Language), cfg.OCR.Timeout, deps.Metrics, lg)

	notification.NewNotifier(newMailer(cfg.Mail, lg), userRepo, cfg.Server.BaseURL, lg).Register(deps.EventBus)

	handlers := rest.Handlers{
		Auth:       auth.NewHandler(authService),
		Users:      user.NewHandler(userService),
		Company:    company.NewHandler(companyService),
		Expenses:   expense.NewHandler(expenseService),
		Approvals:  approval.NewHandler(approvalService),
		Categories: category.NewHandler(transport.NewBaseHandler(lg), categoryService),
		Currency:   currency.NewHandler(currencyService),
		OCR:        ocr.NewHandler(ocrService, cfg.OCR.MaxUploadSize),
	}

	opts := rest.Options{
		DB:             deps.DB,
		RBAC:           auth.NewRBACAuthorization(auth.NewPermissionChecker(), lg),
		ExpenseAccess:  auth.NewSQLExpenseAttributeLoader(deps.DB),
		Metrics:        deps.Metrics,
		MetricsPath:    cfg.Observability.Metrics.Path,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		OpenAPI:        api.Spec,
	}

	rest.RegisterAllRoutes(deps.Router, handlers, opts, lg)
	return nil
}

func newMailer(cfg internal.MailConfig, lg *slog.Logger) notification.Mailer {
	if cfg.Driver == "smtp" {
		return notification.NewSMTPMailer(notification.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
	}
	return notification.NewLogMailer(lg)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.InitWithLevel(config.Env, config.Observability.Logging.Level)
	lg := logger.L()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	var m *metrics.Metrics
	if config.Observability.Metrics.Enabled {
		m = metrics.New(config.Observability.Metrics.Namespace)
	}

	return &Dependencies{
		Config:   config,
		Logger:   lg,
		DB:       db,
		Gorm:     gdb,
		Router:   chi.NewRouter(),
		EventBus: events.NewEventBus(lg),
		Metrics:  m,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.ConnMaxLifetime > 0 {
		dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm layers gorm over the sqlx pool so both share connections.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}
