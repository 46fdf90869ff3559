package carechart

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carechart/carechart/internal/platform/auth"
	"github.com/carechart/carechart/internal/platform/fhirclient"
	"github.com/carechart/carechart/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	professional := api.Group("", auth.RequireRole(auth.RoleProfessional), auth.RequireFHIRResource())
	professional.GET("/patients", h.ListPatients)
	professional.GET("/patients/:patient_id/care-chart", h.GetPatientCareChart)
	professional.GET("/patients/:patient_id/checkups", h.ListCheckups)

	client := api.Group("", auth.RequireRole(auth.RoleClient), auth.RequireFHIRResource())
	client.GET("/me/care-chart", h.GetMyCareChart)
}

// HTTPError maps service errors to HTTP errors.
func HTTPError(err error) error {
	var statusErr *fhirclient.StatusError
	switch {
	case errors.Is(err, ErrNoSubmissions), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotAssigned):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.As(err, &statusErr):
		return echo.NewHTTPError(http.StatusBadGateway, "fhir server error").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}

func (h *Handler) GetPatientCareChart(c echo.Context) error {
	ctx := c.Request().Context()
	chart, err := h.svc.ChartForPractitioner(ctx, auth.FHIRResourceIDFromContext(ctx), c.Param("patient_id"))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, chart)
}

func (h *Handler) GetMyCareChart(c echo.Context) error {
	ctx := c.Request().Context()
	chart, err := h.svc.ChartForPatient(ctx, auth.FHIRResourceIDFromContext(ctx))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, chart)
}

func (h *Handler) ListPatients(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(ctx, auth.FHIRResourceIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListCheckups(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSubmissions(ctx, auth.FHIRResourceIDFromContext(ctx), c.Param("patient_id"), pg.Limit, pg.Offset)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
