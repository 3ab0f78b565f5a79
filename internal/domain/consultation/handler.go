package consultation

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/pharmacy"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/domain/queue"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/appointments/:id/complete", h.Complete)
	doctor.GET("/doctors/:doctor_id/consultation", h.Active)
}

type completeRequest struct {
	CompleteRequest
	// DoctorID lets an administrator close a consultation on a doctor's
	// behalf. Ignored for everyone else.
	DoctorID uuid.UUID `json:"doctor_id"`
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	doctorID := auth.UserUUIDFromContext(ctx)
	if auth.IsAdmin(ctx) && req.DoctorID != uuid.Nil {
		doctorID = req.DoctorID
	}
	res, err := h.svc.Complete(ctx, doctorID, id, req.CompleteRequest)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Active(c echo.Context) error {
	doctorID, err := queue.DoctorParam(c)
	if err != nil {
		return err
	}
	date, err := queue.DateParam(c, h.svc.Today())
	if err != nil {
		return err
	}
	a, err := h.svc.Active(c.Request().Context(), doctorID, date)
	if err != nil {
		return MapError(err)
	}
	if a == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, a)
}

// MapError covers both the queue and the pharmacy errors Complete can return.
func MapError(err error) error {
	switch {
	case errors.Is(err, pharmacy.ErrInvalidMedication):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, pharmacy.ErrNotFound), errors.Is(err, pharmacy.ErrInvalidTransition):
		return pharmacy.MapError(err)
	default:
		return queue.MapError(err)
	}
}
