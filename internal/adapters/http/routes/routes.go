package routes

import (
	"context"
	"fmt"
	"time"

	"classroom-api/internal/adapters/http/handlers"
	"classroom-api/internal/adapters/http/middleware"
	"classroom-api/internal/adapters/persistence/repositories"
	"classroom-api/internal/config"
	"classroom-api/internal/core/domain"
	"classroom-api/internal/core/services"
	"classroom-api/internal/pkg/jwt"
	"classroom-api/internal/pkg/password"
	"classroom-api/internal/pkg/routepolicy"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Dependencies are the adapters the routes are built on
type Dependencies struct {
	DB     *gorm.DB
	Store  services.OTPStore
	Sender services.OTPSender
	Config *config.Config
}

// Services exposes the services built by Setup to the caller (seeding, jobs)
type Services struct {
	Auth  *services.AuthService
	OTP   *services.OTPService
	User  *services.UserService
	Audit *services.AuditService
}

// Handlers groups every HTTP handler mounted by Mount
type Handlers struct {
	Health     *handlers.HealthHandler
	Auth       *handlers.AuthHandler
	OTP        *handlers.OTPHandler
	User       *handlers.UserHandler
	Security   *handlers.SecurityHandler
	SchoolYear *handlers.SchoolYearHandler
}

// Setup configures all routes for the application
func Setup(app *fiber.App, deps Dependencies) (*Services, error) {
	cfg := deps.Config

	// Initialize repositories
	userRepo := repositories.NewUserRepository(deps.DB)
	eventRepo := repositories.NewAuthEventRepository(deps.DB)

	signer, err := jwt.NewSigner(jwt.SignerConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	if err != nil {
		return nil, fmt.Errorf("token signer: %w", err)
	}
	hasher := password.NewHasher(password.DefaultCost)

	// Initialize services
	auditService := services.NewAuditService(eventRepo)
	authService := services.NewAuthService(userRepo, signer, hasher, auditService, cfg.JWT.AccessTokenTTL)
	otpService := services.NewOTPService(userRepo, deps.Store, deps.Sender, signer, authService, auditService, services.OTPConfig{
		Length:          cfg.OTP.Length,
		CodeTTL:         cfg.OTP.CodeTTL,
		PendingTokenTTL: cfg.JWT.PendingTokenTTL,
		MaxRequests:     cfg.OTP.MaxRequests,
	})
	userService := services.NewUserService(userRepo, hasher, auditService)
	schoolYearService := services.NewSchoolYearService(cfg.SchoolYear.StartMonth)

	policy := SchoolPolicy()

	// Initialize handlers
	h := Handlers{
		Health: handlers.NewHealthHandler(cfg.AppMode, map[string]handlers.Pinger{
			"database": func(ctx context.Context) error {
				return config.HealthCheck(deps.DB)
			},
			"otp_store": otpService.Ping,
		}),
		Auth:       handlers.NewAuthHandler(authService, cfg.Cookie),
		OTP:        handlers.NewOTPHandler(otpService, authService, cfg.Cookie),
		User:       handlers.NewUserHandler(userService, auditService),
		Security:   handlers.NewSecurityHandler(otpService, authService, policy),
		SchoolYear: handlers.NewSchoolYearHandler(schoolYearService),
	}

	Mount(app, h, authService, policy)

	return &Services{
		Auth:  authService,
		OTP:   otpService,
		User:  userService,
		Audit: auditService,
	}, nil
}

// SchoolPolicy is the route authorization table, first match wins
func SchoolPolicy() *routepolicy.Policy {
	staff := routepolicy.RequireRole(domain.RoleAdmin, domain.RoleTeacher, domain.RoleAdviser)

	return routepolicy.New(
		routepolicy.Rule{Method: fiber.MethodOptions, Pattern: "/api/**", Requirement: routepolicy.Public()},
		routepolicy.Rule{Method: fiber.MethodPost, Pattern: "/api/auth/session", Requirement: routepolicy.Public()},
		routepolicy.Rule{Method: fiber.MethodPost, Pattern: "/api/otp", Requirement: routepolicy.Public()},
		routepolicy.Rule{Method: fiber.MethodPost, Pattern: "/api/otp/verification", Requirement: routepolicy.Public()},
		routepolicy.Rule{Method: fiber.MethodGet, Pattern: "/api/school-year/active-quarter", Requirement: routepolicy.Public()},
		routepolicy.Rule{Method: routepolicy.AnyMethod, Pattern: "/api/security/settings/**", Requirement: routepolicy.RequireRole(domain.RoleAdmin)},
		routepolicy.Rule{Method: routepolicy.AnyMethod, Pattern: "/api/subjects/**", Requirement: staff},
		routepolicy.Rule{Method: routepolicy.AnyMethod, Pattern: "/api/sections/**", Requirement: staff},
		routepolicy.Rule{Method: fiber.MethodGet, Pattern: "/api/users/me", Requirement: routepolicy.AuthenticatedAny()},
		routepolicy.Rule{Method: fiber.MethodPut, Pattern: "/api/users/me/password", Requirement: routepolicy.AuthenticatedAny()},
		routepolicy.Rule{Method: routepolicy.AnyMethod, Pattern: "/api/users/**", Requirement: routepolicy.RequireRole(domain.RoleAdmin)},
	)
}

// protect installs the authentication filter on every request and the policy under /api
func protect(app *fiber.App, resolver middleware.PrincipalResolver, policy *routepolicy.Policy) {
	app.Use(middleware.Authenticate(resolver))
	app.Use("/api", middleware.Authorize(policy))
}

// Mount registers the filter chain and every route
func Mount(app *fiber.App, h Handlers, resolver middleware.PrincipalResolver, policy *routepolicy.Policy) {
	protect(app, resolver, policy)

	// Health check & root routes
	app.Get("/", h.Health.Root)
	app.Get("/health", h.Health.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api")

	setupAuthRoutes(api.Group("/auth"), h.Auth)
	setupOTPRoutes(api.Group("/otp"), h.OTP)

	api.Get("/school-year/active-quarter", middleware.CacheControl(5*time.Minute), h.SchoolYear.ActiveQuarter)
	api.Get("/security/settings", middleware.NoCacheHeaders(), h.Security.Settings)

	setupUserRoutes(api.Group("/users"), h.User)
}

// setupAuthRoutes configures session routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler) {
	router.Post("/session", middleware.AuthRateLimiter(), middleware.NoCacheHeaders(), handler.Login)
	router.Get("/session", middleware.NoCacheHeaders(), handler.Session)
	router.Delete("/session", handler.Logout)
}

// setupOTPRoutes configures OTP routes (3 req/min/IP)
func setupOTPRoutes(router fiber.Router, handler *handlers.OTPHandler) {
	router.Post("/", middleware.StrictRateLimiter(), middleware.NoCacheHeaders(), handler.Request)
	router.Post("/verification", middleware.StrictRateLimiter(), middleware.NoCacheHeaders(), handler.Verify)
}

// setupUserRoutes configures user management and self-service routes
func setupUserRoutes(router fiber.Router, handler *handlers.UserHandler) {
	// Self-service routes come before /:id
	router.Get("/me", middleware.PrivateCacheHeaders(30*time.Second), handler.GetProfile)
	router.Put("/me/password", handler.ChangePassword)

	// Admin only
	router.Post("/", handler.CreateUser)
	router.Get("/", handler.ListUsers)
	router.Get("/:id", handler.GetUser)
	router.Patch("/:id/status", handler.UpdateStatus)
	router.Patch("/:id/role", handler.UpdateRole)
	router.Get("/:id/events", middleware.PrivateCacheHeaders(0), handler.Events)
}
