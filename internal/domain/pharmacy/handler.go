package pharmacy

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/auth"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/clock"
	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the pharmacy endpoints. poll wraps the list that the
// pharmacy dashboard refreshes on a timer.
func (h *Handler) RegisterRoutes(api *echo.Group, poll echo.MiddlewareFunc) {
	api.GET("/prescriptions/:id", h.GetPrescription)
	api.GET("/appointments/:id/prescription", h.GetByAppointment)

	pharmacist := api.Group("", auth.RequireRole(auth.RolePharmacist))
	pharmacist.GET("/prescriptions", h.ListPrescriptions, poll)
	pharmacist.POST("/prescriptions/:id/status", h.UpdateStatus)
	pharmacist.POST("/prescriptions/:id/notes", h.AddNote)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func filterFromQuery(c echo.Context) (Filter, error) {
	f := Filter{
		PharmacyID: c.QueryParam("pharmacy_id"),
		Status:     Status(c.QueryParam("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown status %q", f.Status))
	}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = id
	}
	if v := c.QueryParam("pickup_token"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid pickup_token")
		}
		f.PickupToken = n
	}
	for param, dst := range map[string]*clock.Date{"from": &f.From, "to": &f.To} {
		if v := c.QueryParam(param); v != "" {
			d, err := clock.ParseDate(v)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			*dst = d
		}
	}
	return f, nil
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return MapError(err)
	}
	if err := canView(c, p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetByAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetByAppointment(c.Request().Context(), id)
	if err != nil {
		return MapError(err)
	}
	if err := canView(c, p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

type statusRequest struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !req.Status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be one of preparing, ready, dispensed, cancelled")
	}
	ctx := c.Request().Context()
	var p *Prescription
	if req.Status == StatusCancelled {
		p, err = h.svc.Cancel(ctx, id, req.Reason)
	} else {
		p, err = h.svc.Advance(ctx, id, req.Status)
	}
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *Handler) AddNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.AddNote(c.Request().Context(), id, req.Note)
	if err != nil {
		return MapError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

// canView allows pharmacy staff, the prescribing doctor and the patient.
func canView(c echo.Context, p *Prescription) error {
	ctx := c.Request().Context()
	if auth.HasRole(ctx, auth.RolePharmacist) || auth.IsSelf(ctx, p.DoctorID) || auth.IsSelf(ctx, p.PatientID) {
		return nil
	}
	return echo.NewHTTPError(http.StatusForbidden, "not permitted to view this prescription")
}

func MapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidMedication), errors.Is(err, ErrNoteRequired), errors.Is(err, ErrInvalidFilter):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
