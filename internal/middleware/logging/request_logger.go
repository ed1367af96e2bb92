package loggingmw

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/logging"
)

// RequestLogger puts a request-scoped logger on the context and writes one
// "request completed" line once the response status is known. Health probes
// are logged at debug level so they do not drown the access log.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			l := base.With(requestAttrs(c)...)
			if rid := requestID(c); rid != "" {
				l = l.With("request_id", rid)
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}
			ctx := logging.IntoContext(req.Context(), l)
			c.SetRequest(req.WithContext(ctx))

			start := time.Now()
			err := next(c)
			if err != nil {
				// Render now so the logged status is the one the client sees.
				c.Error(err)
			}

			res := c.Response()
			attrs := []slog.Attr{
				slog.Int("status", res.Status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Int64("bytes", res.Size),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			l.LogAttrs(ctx, levelFor(c.Path(), res.Status), "request completed", attrs...)
			return nil
		}
	}
}

func requestAttrs(c echo.Context) []any {
	req := c.Request()
	return []any{
		"method", req.Method,
		"path", c.Path(),
		"url", req.URL.Path,
		"remote_ip", c.RealIP(),
		"user_agent", req.UserAgent(),
	}
}

// requestID prefers the caller's header and falls back to the id the
// RequestID middleware already put on the response.
func requestID(c echo.Context) string {
	if rid := c.Request().Header.Get(echo.HeaderXRequestID); rid != "" {
		return rid
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func levelFor(path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case strings.HasPrefix(path, "/health/"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
