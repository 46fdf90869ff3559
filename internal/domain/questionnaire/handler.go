package questionnaire

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carechart/carechart/internal/domain/carechart"
	"github.com/carechart/carechart/internal/platform/auth"
)

const maxCheckupBody = 64 << 10

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleProfessional, auth.RoleClient))
	readGroup.GET("/questionnaires/active", h.GetActiveQuiz)

	professional := api.Group("", auth.RequireRole(auth.RoleProfessional), auth.RequireFHIRResource())
	professional.POST("/patients/:patient_id/checkups", h.SubmitCheckup)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/questionnaires/:title/publish", h.Publish)
	admin.POST("/questionnaires/:title/deactivate", h.Deactivate)
	admin.DELETE("/questionnaires/:title", h.Delete)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAnswer):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnknownQuestionnaire), errors.Is(err, ErrQuestionnaireNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateTitle):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return carechart.HTTPError(err)
	}
}

type quizResponse struct {
	Title     string               `json:"title"`
	Questions []QuestionDefinition `json:"questions"`
}

func (h *Handler) GetActiveQuiz(c echo.Context) error {
	defs, err := h.svc.ActiveQuiz(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, quizResponse{Title: h.svc.ActiveTitle(), Questions: defs})
}

func (h *Handler) SubmitCheckup(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCheckupBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	req, err := DecodeCheckup(body)
	if err != nil {
		return httpError(err)
	}

	ctx := c.Request().Context()
	rec, err := h.svc.SubmitCheckup(ctx, auth.FHIRResourceIDFromContext(ctx), c.Param("patient_id"), req.Answers)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Publish(c echo.Context) error {
	title := c.Param("title")
	created, err := h.svc.EnsurePublished(c.Request().Context(), title)
	if err != nil {
		return httpError(err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, map[string]interface{}{"title": title, "created": created})
}

func (h *Handler) Deactivate(c echo.Context) error {
	if err := h.svc.Deactivate(c.Request().Context(), c.Param("title")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("title")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
