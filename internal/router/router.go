package router

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"storeadmin/internal/auth"
	apperrors "storeadmin/internal/errors"
	"storeadmin/internal/handler"
	"storeadmin/internal/ratelimit"
	"storeadmin/internal/service"
)

// multipartSlack is the allowance for non-file form fields on multipart routes.
const multipartSlack = 1 << 20

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Product  *handler.ProductHandler
	Category *handler.CategoryHandler
	Upload   *handler.UploadHandler
	Health   *handler.HealthHandler
}

// Options tunes route level middleware.
type Options struct {
	// UploadMaxBytes bounds a single image; the request body may exceed it by multipartSlack.
	UploadMaxBytes int64
	// LoginLimiter throttles register and login. nil disables throttling.
	LoginLimiter *ratelimit.Limiter
}

// Register wires routes and middleware.
func Register(e *echo.Echo, h Handlers, authService service.AuthService, opts Options) {
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", h.Health.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/uploads/:filename", h.Upload.ServeImage)

	api := e.Group("/api")

	// Public routes
	throttle := opts.LoginLimiter.Middleware()
	api.POST("/register", h.Auth.Register, throttle)
	api.POST("/login", h.Auth.Login, throttle)

	// Secured routes (require a bearer token)
	secured := api.Group("", BearerAuth(authService))

	bodyLimit := middleware.BodyLimit(strconv.FormatInt(opts.UploadMaxBytes+multipartSlack, 10))

	secured.GET("/products", h.Product.ListProducts)
	secured.POST("/products", h.Product.CreateProduct, RequireAdmin, bodyLimit)
	secured.PUT("/products/:id", h.Product.UpdateProduct, RequireAdmin, bodyLimit)
	secured.DELETE("/products/:id", h.Product.DeleteProduct, RequireAdmin)

	secured.GET("/categories", h.Category.ListCategories)
	secured.POST("/categories", h.Category.CreateCategory, RequireAdmin)
	secured.PUT("/categories/:id", h.Category.UpdateCategory, RequireAdmin)
	secured.DELETE("/categories/:id", h.Category.DeleteCategory, RequireAdmin)

	secured.GET("/users", h.User.ListUsers, RequireAdmin)
}

// BearerAuth verifies the Authorization: Bearer token and stores its claims
// under auth.ContextKey.
func BearerAuth(authService service.AuthService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  auth.ContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return authService.Verify(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if errors.Is(err, apperrors.ErrInvalidToken) {
				return apperrors.ToEcho(err)
			}
			return apperrors.ToEcho(apperrors.ErrMissingToken)
		},
	})
}

// RequireAdmin rejects callers whose token does not carry the admin flag.
// It runs before the body is read so that non-admins get 403 for any payload.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := auth.ClaimsFromContext(c)
		if !ok {
			return apperrors.ToEcho(apperrors.ErrMissingToken)
		}
		if !claims.IsAdmin {
			return apperrors.ToEcho(apperrors.ErrForbidden)
		}
		return next(c)
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
