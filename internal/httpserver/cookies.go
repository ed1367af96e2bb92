package httpserver

import (
	"net/http"
	"time"

	"github.com/Skotchmaster/auth_service/internal/middleware/auth"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

type CookieConfig struct {
	Domain string
	Secure bool
}

func (cc CookieConfig) CreateCookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cc.Domain,
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (cc CookieConfig) DeleteCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   cc.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// pairCookies lives for exactly as long as each token does.
func (cc CookieConfig) pairCookies(p session.Pair) []*http.Cookie {
	return []*http.Cookie{
		cc.CreateCookie(auth.AccessCookie, p.AccessToken, tokens.AccessTokenTTL),
		cc.CreateCookie(auth.RefreshCookie, p.RefreshToken, time.Until(p.RefreshExpiresAt).Truncate(time.Second)),
	}
}

func (cc CookieConfig) clearCookies() []*http.Cookie {
	return []*http.Cookie{
		cc.DeleteCookie(auth.AccessCookie),
		cc.DeleteCookie(auth.RefreshCookie),
	}
}
