package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/roles"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"

	payloadKey = "auth_payload"
)

type AccessVerifier interface {
	VerifyAccess(token string) (tokens.Payload, error)
}

// RequireAuth accepts the access token from the accessToken cookie or from
// an Authorization: Bearer header and stores its payload on the context.
func RequireAuth(v AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := logging.FromContext(c.Request().Context())

			raw := accessToken(c)
			if raw == "" {
				l.Warn("auth_failed", "status", 401, "reason", "missing access token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}

			p, err := v.VerifyAccess(raw)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, tokens.ErrExpiredToken) {
					msg = "token expired"
				}
				l.Warn("auth_failed", "status", 401, "reason", msg, "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, msg).SetInternal(err)
			}

			c.Set(payloadKey, p)
			l = l.With("user_id", p.Subject, "role", p.Role.String())
			c.SetRequest(c.Request().WithContext(logging.IntoContext(c.Request().Context(), l)))
			return next(c)
		}
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(allowed ...roles.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PayloadFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}
			for _, r := range allowed {
				if p.Role == r {
					return next(c)
				}
			}
			logging.FromContext(c.Request().Context()).Warn("auth_forbidden", "status", 403, "role", p.Role.String())
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}
	}
}

func PayloadFrom(c echo.Context) (tokens.Payload, bool) {
	p, ok := c.Get(payloadKey).(tokens.Payload)
	return p, ok
}

func accessToken(c echo.Context) string {
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
