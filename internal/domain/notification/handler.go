package notification

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitalred/vitalred/internal/platform/apperror"
	"github.com/vitalred/vitalred/internal/platform/auth"
	"github.com/vitalred/vitalred/pkg/pagination"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	any := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePhysician))
	any.GET("/notifications", h.List)
	any.POST("/notifications/:id/read", h.MarkRead)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/notifications/failed", h.ListFailed)
}

// List returns the caller's own notifications.
func (h *Handler) List(c echo.Context) error {
	actor := auth.ActorFromContext(c.Request().Context())
	if actor == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	recipientID, err := uuid.Parse(actor.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "actor has no mailbox")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.repo.ListByRecipient(c.Request().Context(), recipientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor := auth.ActorFromContext(c.Request().Context())
	n, err := h.repo.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		if n.RecipientID == nil || n.RecipientID.String() != actor.ID {
			return apperror.ErrForbidden
		}
	}
	if err := h.repo.MarkRead(c.Request().Context(), id, time.Now().UTC()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListFailed(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.repo.ListFailed(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
