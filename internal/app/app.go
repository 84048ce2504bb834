// Package app wires repositories, services and handlers into a Fiber application.
package app

import (
	"io"
	"time"

	"mercado/internal/config"
	"mercado/internal/handlers"
	"mercado/internal/metrics"
	"mercado/internal/middleware"
	"mercado/internal/repositories"
	"mercado/internal/services"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options carries the optional collaborators of the application.
type Options struct {
	Revocations repositories.RevocationStore // nil disables logout and reset revocation
	Publisher   services.EventPublisher      // nil disables domain events
	AccessLog   io.Writer                    // nil disables the access log
}

// Server is the assembled application.
type Server struct {
	App         *fiber.App
	Tokens      *services.TokenService
	Auth        *services.AuthService
	Users       *services.UserService
	Products    *services.ProductService
	Categories  *services.CategoryService
	Orders      *services.OrderService
	Maintenance *services.Maintenance
}

// New builds the application on top of db.
func New(cfg *config.Config, db *gorm.DB, log *zap.Logger, opts Options) *Server {
	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	tokens := services.NewTokenService(cfg.JWT)
	authOpts := []services.AuthOption{
		services.WithBcryptCost(cfg.BcryptCost),
		services.WithResetCodeTTL(cfg.ResetCodeTTL),
	}
	if opts.Revocations != nil {
		authOpts = append(authOpts, services.WithRevocationStore(opts.Revocations))
	}
	if opts.Publisher != nil {
		authOpts = append(authOpts, services.WithAuthEvents(opts.Publisher))
	}

	s := &Server{
		Tokens:      tokens,
		Auth:        services.NewAuthService(userRepo, tokens, log, authOpts...),
		Users:       services.NewUserService(userRepo, log, cfg.BcryptCost),
		Products:    services.NewProductService(productRepo, categoryRepo, log),
		Categories:  services.NewCategoryService(categoryRepo, log),
		Orders:      services.NewOrderService(orderRepo, productRepo, opts.Publisher, log),
		Maintenance: services.NewMaintenance(userRepo, log),
	}

	app := fiber.New(fiber.Config{
		AppName:      "mercado",
		ErrorHandler: handlers.ErrorHandler(log, cfg.IsDevelopment()),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	if opts.AccessLog != nil {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
			Output: opts.AccessLog,
		}))
	}
	app.Use(metrics.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		status, code := "healthy", fiber.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			status, code = "unhealthy", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", metrics.Handler())

	requireAuth := middleware.AuthRequired(s.Auth)

	var throttle fiber.Handler
	if cfg.AuthRateLimit > 0 {
		throttle = limiter.New(limiter.Config{
			Max:        cfg.AuthRateLimit,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "too many attempts, try again later")
			},
		})
	}
	handlers.NewAuthHandler(s.Auth, requireAuth, throttle).RegisterRoutes(app)

	api := app.Group("/api")
	handlers.NewProductHandler(s.Products, requireAuth).RegisterRoutes(api)
	handlers.NewCategoryHandler(s.Categories, requireAuth).RegisterRoutes(api)
	handlers.NewOrderHandler(s.Orders, requireAuth).RegisterRoutes(api)
	handlers.NewUserHandler(s.Users, requireAuth).RegisterRoutes(api)

	s.App = app
	return s
}
