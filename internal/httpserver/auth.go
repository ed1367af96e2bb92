package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/middleware/auth"
	"github.com/Skotchmaster/auth_service/internal/service"
)

type AuthHTTP struct {
	Svc     *service.AuthService
	Cookies CookieConfig
}

func (h *AuthHTTP) setCookies(c echo.Context, cookies []*http.Cookie) {
	for _, ck := range cookies {
		c.SetCookie(ck)
	}
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Register(ctx, req)
	if err != nil {
		return err
	}

	h.setCookies(c, h.Cookies.pairCookies(res.Pair))
	return c.JSON(http.StatusCreated, echo.Map{"id": res.User.ID})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req)
	if err != nil {
		return err
	}

	h.setCookies(c, h.Cookies.pairCookies(res.Pair))
	return c.JSON(http.StatusOK, echo.Map{"id": res.User.ID})
}

func (h *AuthHTTP) Self(c echo.Context) error {
	p, ok := auth.PayloadFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	user, err := h.Svc.Self(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	ck, err := c.Cookie(auth.RefreshCookie)
	if err != nil || ck.Value == "" {
		l.Warn("refresh_error", "status", 401, "reason", "missing refresh token")
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	res, err := h.Svc.Refresh(ctx, ck.Value)
	if err != nil {
		return err
	}

	h.setCookies(c, h.Cookies.pairCookies(res.Pair))
	return c.JSON(http.StatusOK, echo.Map{"id": res.User.ID})
}

// LogOut always clears both cookies and answers 200. A revoke failure is
// only logged; the record then expires on its own.
func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if ck, err := c.Cookie(auth.RefreshCookie); err == nil {
		if err := h.Svc.Logout(ctx, ck.Value); err != nil {
			l.Error("logout_failed", "reason", "cannot revoke refreshToken", "error", err)
		}
	}

	h.setCookies(c, h.Cookies.clearCookies())
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}
