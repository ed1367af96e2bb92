package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

type errorItem struct {
	Type     string `json:"type"`
	Value    string `json:"value,omitempty"`
	Msg      string `json:"msg"`
	Path     string `json:"path"`
	Location string `json:"location"`
}

type errorBody struct {
	Errors []errorItem `json:"errors"`
}

// toHTTPError is the single place domain errors become status codes.
func toHTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	code, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, service.ErrValidation):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrAuthentication):
		code, msg = http.StatusBadRequest, "Email or password does not match"
	case errors.Is(err, service.ErrEmailTaken):
		code, msg = http.StatusBadRequest, "Email already in use"
	case errors.Is(err, service.ErrUserNotFound):
		code, msg = http.StatusBadRequest, "User with the token could not find"
	case errors.Is(err, tokens.ErrExpiredToken):
		code, msg = http.StatusUnauthorized, "token expired"
	case errors.Is(err, tokens.ErrRevokedToken):
		code, msg = http.StatusUnauthorized, "token revoked"
	case errors.Is(err, tokens.ErrInvalidToken), errors.Is(err, tokens.ErrMalformedToken):
		code, msg = http.StatusUnauthorized, "invalid token"
	}
	return echo.NewHTTPError(code, msg).SetInternal(err)
}

// ErrorHandler renders every error as {"errors":[{type,msg,path,location}]}.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code int
		body errorBody
		verr *service.ValidationError
	)
	if errors.As(err, &verr) {
		code = http.StatusBadRequest
		for _, f := range verr.Fields {
			body.Errors = append(body.Errors, errorItem{
				Type: "field", Value: f.Value, Msg: f.Msg, Path: f.Field, Location: "body",
			})
		}
	} else {
		he := toHTTPError(err)
		code = he.Code
		body.Errors = []errorItem{{Type: errorType(code), Msg: fmt.Sprint(he.Message)}}
		if code >= http.StatusInternalServerError {
			logging.FromContext(c.Request().Context()).Error("request_failed", "status", code, "error", err)
		}
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.JSON(code, body)
	}
	if werr != nil {
		logging.FromContext(c.Request().Context()).Error("error_response_failed", "error", werr)
	}
}

// errorType names a status the way http-errors does: 401 -> UnauthorizedError.
func errorType(code int) string {
	name := strings.ReplaceAll(http.StatusText(code), " ", "")
	if name == "" {
		name = "Http"
	}
	if !strings.HasSuffix(name, "Error") {
		name += "Error"
	}
	return name
}
