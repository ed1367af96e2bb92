package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/service"
)

type TenantHTTP struct {
	Svc *service.TenantService
}

func (h *TenantHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req service.TenantInput
	if err := c.Bind(&req); err != nil {
		logging.FromContext(ctx).Warn("tenant_create_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	t, err := h.Svc.Create(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": t.ID})
}

func (h *TenantHTTP) List(c echo.Context) error {
	page := queryInt(c, "page")
	size := queryInt(c, "size")

	res, err := h.Svc.List(c.Request().Context(), page, size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// queryInt returns 0 for absent or malformed values; paging treats 0 as default.
func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}
