package polling

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/queue"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/auth"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/middleware"
)

// Intervals are the poll periods advertised to each kind of screen.
type Intervals struct {
	Patient  time.Duration
	Doctor   time.Duration
	Pharmacy time.Duration
}

// For picks the interval for the caller bound to ctx. Front-desk staff watch
// the same boards as doctors.
func (iv Intervals) For(ctx context.Context) time.Duration {
	switch {
	case auth.HasRole(ctx, auth.RoleDoctor, auth.RoleReceptionist):
		return iv.Doctor
	case auth.HasRole(ctx, auth.RolePharmacist):
		return iv.Pharmacy
	default:
		return iv.Patient
	}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, poll echo.MiddlewareFunc) {
	api.GET("/appointments/:id/queue-status", h.QueueStatus, poll)

	staff := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist))
	staff.GET("/doctors/:doctor_id/queue", h.QueueSnapshot, poll)
}

func (h *Handler) QueueSnapshot(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	ctx := c.Request().Context()
	if err := auth.RequireSelfOr(ctx, doctorID, auth.RoleReceptionist); err != nil {
		return err
	}
	date, err := queue.DateParam(c, h.svc.Today())
	if err != nil {
		return err
	}
	snap, err := h.svc.QueueSnapshot(ctx, doctorID, date)
	if err != nil {
		return queue.MapError(err)
	}
	stable := *snap
	stable.AsOf = time.Time{}
	return writeWithETag(c, snap, stable)
}

func (h *Handler) QueueStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	st, a, err := h.svc.QueueStatus(c.Request().Context(), id)
	if err != nil {
		return queue.MapError(err)
	}
	if err := queue.CanView(c, a); err != nil {
		return err
	}
	stable := *st
	stable.AsOf = time.Time{}
	return writeWithETag(c, st, stable)
}

// writeWithETag tags the response with a hash of stable, the body minus
// fields that change on every poll, so unchanged queues revalidate to 304.
func writeWithETag(c echo.Context, body, stable interface{}) error {
	b, err := json.Marshal(stable)
	if err != nil {
		return err
	}
	c.Response().Header().Set("ETag", middleware.ComputeETag(b))
	return c.JSON(http.StatusOK, body)
}
