package queue

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/auth"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments/:id", h.GetAppointment)

	booking := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleReceptionist))
	booking.POST("/appointments", h.Book)
	booking.GET("/appointments", h.ListForPatient)
	booking.POST("/appointments/:id/cancel", h.Cancel)

	desk := api.Group("", auth.RequireRole(auth.RoleReceptionist))
	desk.POST("/appointments/:id/check-in", h.CheckIn)

	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/doctors/:doctor_id/queue/call-next", h.CallNext)
	doctor.POST("/doctors/:doctor_id/queue/call/:id", h.CallAppointment)
}

func (h *Handler) Book(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if req.PatientID == uuid.Nil && !auth.HasRole(ctx, auth.RoleReceptionist) {
		req.PatientID = auth.UserUUIDFromContext(ctx)
	}
	if err := auth.RequireSelfOr(ctx, req.PatientID, auth.RoleReceptionist); err != nil {
		return err
	}
	a, err := h.svc.Book(ctx, req)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, id)
	if err != nil {
		return MapError(err)
	}
	if err := CanView(c, a); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	ctx := c.Request().Context()
	patientID := auth.UserUUIDFromContext(ctx)
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		patientID = id
	}
	if err := auth.RequireSelfOr(ctx, patientID, auth.RoleReceptionist); err != nil {
		return err
	}
	items, err := h.svc.ListForPatient(ctx, patientID)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) CheckIn(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.CheckIn(c.Request().Context(), id)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if !auth.HasRole(ctx, auth.RoleReceptionist) {
		a, err := h.svc.Get(ctx, id)
		if err != nil {
			return MapError(err)
		}
		if err := auth.RequireSelfOr(ctx, a.PatientID); err != nil {
			return err
		}
	}
	a, err := h.svc.Cancel(ctx, id, req.Reason)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CallNext(c echo.Context) error {
	doctorID, date, err := h.doctorDay(c)
	if err != nil {
		return err
	}
	a, err := h.svc.CallNext(c.Request().Context(), doctorID, date)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CallAppointment(c echo.Context) error {
	doctorID, err := DoctorParam(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.CallAppointment(c.Request().Context(), doctorID, id)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// DoctorParam parses :doctor_id and requires the caller to be that doctor.
func DoctorParam(c echo.Context) (uuid.UUID, error) {
	doctorID, err := uuid.Parse(c.Param("doctor_id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	if err := auth.RequireSelfOr(c.Request().Context(), doctorID); err != nil {
		return uuid.Nil, err
	}
	return doctorID, nil
}

func (h *Handler) doctorDay(c echo.Context) (uuid.UUID, clock.Date, error) {
	doctorID, err := DoctorParam(c)
	if err != nil {
		return uuid.Nil, "", err
	}
	date, err := DateParam(c, h.svc.Today())
	if err != nil {
		return uuid.Nil, "", err
	}
	return doctorID, date, nil
}

// DateParam reads ?date=, defaulting to today.
func DateParam(c echo.Context, today clock.Date) (clock.Date, error) {
	raw := c.QueryParam("date")
	if raw == "" {
		return today, nil
	}
	d, err := clock.ParseDate(raw)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return d, nil
}

// CanView allows the appointment's patient, its doctor, and front-desk and
// pharmacy staff.
func CanView(c echo.Context, a *Appointment) error {
	ctx := c.Request().Context()
	if auth.IsSelf(ctx, a.PatientID) || auth.IsSelf(ctx, a.DoctorID) ||
		auth.HasRole(ctx, auth.RoleReceptionist, auth.RolePharmacist) {
		return nil
	}
	return echo.NewHTTPError(http.StatusForbidden, "not permitted to view this appointment")
}

// MapError converts queue errors to HTTP errors.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoEligiblePatients):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
