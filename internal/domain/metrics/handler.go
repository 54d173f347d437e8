package metrics

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vitalred/vitalred/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	any := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePhysician))
	any.GET("/metrics/daily", h.QueryDaily)
}

func (h *Handler) QueryDaily(c echo.Context) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	from, err := parseDate(c.QueryParam("from"), today.AddDate(0, 0, -30))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid from date")
	}
	to, err := parseDate(c.QueryParam("to"), today)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid to date")
	}
	if to.Before(from) {
		return echo.NewHTTPError(http.StatusBadRequest, "to must not precede from")
	}
	items, err := h.svc.QueryRange(c.Request().Context(), from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}

func parseDate(v string, fallback time.Time) (time.Time, error) {
	if v == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", v)
}
