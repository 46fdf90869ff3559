package questionnaire

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/carechart/carechart/internal/domain/carechart"
	"github.com/carechart/carechart/internal/platform/auth"
)

func newRequest(method, target, body, fhirID, role string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := auth.WithIdentity(req.Context(), auth.Identity{
		UserID:         "u-" + fhirID,
		Roles:          []string{role},
		FHIRResourceID: fhirID,
	})
	return req.WithContext(ctx), httptest.NewRecorder()
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d", code, he.Code)
	}
}

func TestHandler_GetActiveQuiz(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	req, rec := newRequest(http.MethodGet, "/questionnaires/active", "", "pat-1", auth.RoleClient)
	if err := h.GetActiveQuiz(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body quizResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Title != "mini" || len(body.Questions) != 2 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHandler_SubmitCheckup(t *testing.T) {
	svc, _, recorder := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	req, rec := newRequest(http.MethodPost, "/patients/pat-1/checkups", `{"answers":[-1,0]}`, "dr-1", auth.RoleProfessional)
	c := e.NewContext(req, rec)
	c.SetParamNames("patient_id")
	c.SetParamValues("pat-1")

	if err := h.SubmitCheckup(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if len(recorder.records) != 1 || recorder.records[0].PractitionerID != "dr-1" {
		t.Errorf("unexpected records: %+v", recorder.records)
	}
}

func TestHandler_SubmitCheckup_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		recErr error
		code   int
	}{
		{"schema", `{"answers":"x"}`, nil, http.StatusBadRequest},
		{"not an option", `{"answers":[7,0]}`, nil, http.StatusBadRequest},
		{"not assigned", `{"answers":[1,0]}`, carechart.ErrNotAssigned, http.StatusForbidden},
		{"unknown patient", `{"answers":[1,0]}`, carechart.ErrPatientNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, recorder := newTestService()
			recorder.err = tt.recErr
			h := NewHandler(svc)
			e := echo.New()

			req, rec := newRequest(http.MethodPost, "/patients/pat-1/checkups", tt.body, "dr-1", auth.RoleProfessional)
			c := e.NewContext(req, rec)
			c.SetParamNames("patient_id")
			c.SetParamValues("pat-1")
			expectStatus(t, h.SubmitCheckup(c), tt.code)
		})
	}
}

func TestHandler_PublishDeactivateDelete(t *testing.T) {
	svc, store, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	call := func(fn echo.HandlerFunc, method string) (*httptest.ResponseRecorder, error) {
		req, rec := newRequest(method, "/questionnaires/mini", "", "admin", auth.RoleAdmin)
		c := e.NewContext(req, rec)
		c.SetParamNames("title")
		c.SetParamValues("mini")
		return rec, fn(c)
	}

	rec, err := call(h.Publish, http.MethodPost)
	if err != nil || rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", rec.Code, err)
	}
	rec, err = call(h.Publish, http.MethodPost)
	if err != nil || rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on republish, got %d (%v)", rec.Code, err)
	}
	rec, err = call(h.Deactivate, http.MethodPost)
	if err != nil || rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%v)", rec.Code, err)
	}
	if store.byTitle["mini"].Status != "inactive" {
		t.Error("expected questionnaire to be inactive")
	}
	rec, err = call(h.Delete, http.MethodDelete)
	if err != nil || rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%v)", rec.Code, err)
	}
	_, err = call(h.Delete, http.MethodDelete)
	expectStatus(t, err, http.StatusNotFound)
}

func TestHTTPError_Duplicate(t *testing.T) {
	expectStatus(t, httpError(ErrDuplicateTitle), http.StatusConflict)
	expectStatus(t, httpError(ErrUnknownQuestionnaire), http.StatusNotFound)
	expectStatus(t, httpError(errors.New("boom")), http.StatusInternalServerError)
}

func TestHandler_RegisterRoutes(t *testing.T) {
	svc, _, _ := newTestService()
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		"GET /api/v1/questionnaires/active":             false,
		"POST /api/v1/patients/:patient_id/checkups":    false,
		"POST /api/v1/questionnaires/:title/publish":    false,
		"POST /api/v1/questionnaires/:title/deactivate": false,
		"DELETE /api/v1/questionnaires/:title":          false,
	}
	for _, r := range e.Routes() {
		if _, ok := want[r.Method+" "+r.Path]; ok {
			want[r.Method+" "+r.Path] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}
