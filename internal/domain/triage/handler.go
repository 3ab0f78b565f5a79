package triage

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/triage", h.Preview)
}

type previewResponse struct {
	Priority    Priority `json:"priority"`
	Suggestions []string `json:"suggestions"`
}

// Preview shows what priority a booking with these symptoms would get.
func (h *Handler) Preview(c echo.Context) error {
	symptoms := c.QueryParam("symptoms")
	return c.JSON(http.StatusOK, previewResponse{
		Priority:    Classify(symptoms),
		Suggestions: Suggest(symptoms),
	})
}
