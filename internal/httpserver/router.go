package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/auth_service/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/auth_service/internal/middleware/logging"
	"github.com/Skotchmaster/auth_service/internal/roles"
)

type Deps struct {
	AuthHandler   *AuthHTTP
	TenantHandler *TenantHTTP
	Verifier      auth.AccessVerifier
	// Ready reports whether backing stores answer; nil means always ready.
	Ready func(ctx context.Context) error
}

// New builds the echo instance with the service-wide middleware stack.
func New(logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(loggingmw.RequestLogger(logger))
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Welcome to auth service")
	})
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Ready(ctx); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
		}
		return c.NoContent(http.StatusOK)
	})

	requireAuth := auth.RequireAuth(d.Verifier)

	a := e.Group("/auth")
	a.POST("/register", d.AuthHandler.Register)
	a.POST("/login", d.AuthHandler.Login)
	a.POST("/refresh", d.AuthHandler.Refresh)
	a.POST("/logout", d.AuthHandler.LogOut)
	a.GET("/self", d.AuthHandler.Self, requireAuth)

	t := e.Group("/tenants", requireAuth, auth.RequireRole(roles.Admin))
	t.POST("", d.TenantHandler.Create)
	t.GET("", d.TenantHandler.List)
}
