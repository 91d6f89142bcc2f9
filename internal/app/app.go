package app

import (
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	_ "storeadmin/docs" // swagger docs

	"storeadmin/internal/auth"
	"storeadmin/internal/config"
	apperrors "storeadmin/internal/errors"
	"storeadmin/internal/handler"
	"storeadmin/internal/ratelimit"
	"storeadmin/internal/repository"
	"storeadmin/internal/router"
	"storeadmin/internal/service"
	"storeadmin/internal/storage"
	"storeadmin/internal/upload"
)

// Deps are the process-owned resources the HTTP server is built on.
type Deps struct {
	DB      *gorm.DB
	Store   storage.Store
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// New assembles repositories, services and handlers into a ready echo server.
func New(cfg *config.Config, deps Deps) (*echo.Echo, error) {
	sqlDB, err := deps.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(deps.DB)
	categoryRepo := repository.NewCategoryRepository(deps.DB)
	productRepo := repository.NewProductRepository(deps.DB)

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	acceptor := upload.NewAcceptor(deps.Store, cfg.UploadMaxBytes, deps.Logger)
	authService := service.NewAuthService(userRepo, jwtService)
	userService := service.NewUserService(userRepo)
	catalogService := service.NewCatalogService(productRepo, categoryRepo, acceptor, cfg.PublicBaseURL)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperrors.HTTPErrorHandler(deps.Logger)

	e.Use(middleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		User:     handler.NewUserHandler(userService),
		Product:  handler.NewProductHandler(catalogService, acceptor),
		Category: handler.NewCategoryHandler(catalogService),
		Upload:   handler.NewUploadHandler(deps.Store),
		Health:   handler.NewHealthHandler(sqlDB, deps.Logger),
	}, authService, router.Options{
		UploadMaxBytes: acceptor.MaxBytes(),
		LoginLimiter:   deps.Limiter,
	})

	return e, nil
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}
