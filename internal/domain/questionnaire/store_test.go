package questionnaire

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/caramel/to"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"

	"github.com/carechart/carechart/internal/platform/fhirclient"
)

type fakeFHIR struct {
	found   []*fhir.Questionnaire
	put     *fhir.Questionnaire
	deleted string
}

func (f *fakeFHIR) FindQuestionnairesByTitle(_ context.Context, _ string) ([]*fhir.Questionnaire, error) {
	return f.found, nil
}

func (f *fakeFHIR) PutQuestionnaire(_ context.Context, q *fhir.Questionnaire) (*fhir.Questionnaire, error) {
	f.put = q
	return q, nil
}

func (f *fakeFHIR) DeleteQuestionnaire(_ context.Context, id string) error {
	f.deleted = id
	return nil
}

func TestStoreFHIR_FindByTitle(t *testing.T) {
	api := &fakeFHIR{}
	store := NewStoreFHIR(api)
	ctx := context.Background()

	q, err := store.FindByTitle(ctx, "t")
	if err != nil || q != nil {
		t.Errorf("expected nil for no match, got %+v, %v", q, err)
	}

	api.found = []*fhir.Questionnaire{{Id: to.Ptr("a")}}
	q, err = store.FindByTitle(ctx, "t")
	if err != nil || q == nil || *q.Id != "a" {
		t.Errorf("expected single match, got %+v, %v", q, err)
	}

	api.found = append(api.found, &fhir.Questionnaire{Id: to.Ptr("b")})
	if _, err := store.FindByTitle(ctx, "t"); !errors.Is(err, ErrDuplicateTitle) {
		t.Errorf("expected ErrDuplicateTitle, got %v", err)
	}
}

func TestStoreFHIR_PutDelete(t *testing.T) {
	api := &fakeFHIR{}
	store := NewStoreFHIR(api)

	if _, err := store.Put(context.Background(), &fhir.Questionnaire{Id: to.Ptr("x")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.put == nil || *api.put.Id != "x" {
		t.Errorf("expected put to reach the FHIR API, got %+v", api.put)
	}
	if err := store.Delete(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.deleted != "x" {
		t.Errorf("expected delete of x, got %q", api.deleted)
	}
}

const publishedQuestionnaire = `{
	"resourceType": "Questionnaire",
	"id": "q-7",
	"url": "https://forms.example/Questionnaire/mini",
	"version": "3",
	"publisher": "Dermatology Dept",
	"date": "2024-11-02",
	"title": "mini",
	"status": "active",
	"item": [{
		"linkId": "q1",
		"text": "Acne?",
		"type": "choice",
		"extension": [{"url": "https://forms.example/hint", "valueString": "look closely"}],
		"answerOption": [{"valueInteger": -1}, {"valueInteger": 1}]
	}]
}`

// Retiring a questionnaire against a real FHIR client must PUT back every
// field of the stored resource, not only the ones this service reads.
func TestService_DeactivateKeepsStoredFields(t *testing.T) {
	var putPath string
	var putBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/fhir+json")
		if r.Method == http.MethodPut {
			putPath = r.URL.Path
			raw, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(raw, &putBody); err != nil {
				t.Errorf("decode PUT body: %v", err)
			}
			_, _ = w.Write(raw)
			return
		}
		_, _ = io.WriteString(w, `{"resourceType":"Bundle","type":"searchset","entry":[{"resource":`+publishedQuestionnaire+`}]}`)
	}))
	defer srv.Close()

	client, err := fhirclient.New(srv.URL+"/", fhirclient.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	svc := NewService(NewStoreFHIR(client), testCatalog(), &mockRecorder{}, "mini", zerolog.Nop())

	if err := svc.Deactivate(context.Background(), "mini"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if putPath != "/Questionnaire/q-7" {
		t.Errorf("expected PUT to /Questionnaire/q-7, got %q", putPath)
	}
	if putBody["status"] != "retired" {
		t.Errorf("expected status retired, got %v", putBody["status"])
	}
	for field, want := range map[string]string{
		"url":       "https://forms.example/Questionnaire/mini",
		"version":   "3",
		"publisher": "Dermatology Dept",
		"date":      "2024-11-02",
	} {
		if putBody[field] != want {
			t.Errorf("expected %s %q to survive, got %v", field, want, putBody[field])
		}
	}
	items, _ := putBody["item"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %v", putBody["item"])
	}
	item := items[0].(map[string]any)
	if ext, _ := item["extension"].([]any); len(ext) != 1 {
		t.Errorf("expected item extension to survive, got %v", item["extension"])
	}
	if opts, _ := item["answerOption"].([]any); len(opts) != 2 {
		t.Errorf("expected answer options to survive, got %v", item["answerOption"])
	}
}
