package fhirclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// GetPatient reads Patient/id.
func (c *Client) GetPatient(ctx context.Context, id string) (*fhir.Patient, error) {
	var p fhir.Patient
	if err := c.Read(ctx, FormatReference("Patient", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPatients returns every patient, active or not, whose general
// practitioner is practitionerID.
func (c *Client) ListPatients(ctx context.Context, practitionerID string) ([]*fhir.Patient, error) {
	params := url.Values{}
	params.Set("general-practitioner", FormatReference("Practitioner", practitionerID))

	entries, err := c.SearchAll(ctx, "Patient", params, 0)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	return DecodeEntries[fhir.Patient](entries)
}

// SearchQuestionnaireResponses returns every response about patientID
// authored by practitionerID, oldest first as ordered by the server.
func (c *Client) SearchQuestionnaireResponses(ctx context.Context, practitionerID, patientID string) ([]*fhir.QuestionnaireResponse, error) {
	params := url.Values{}
	params.Set("subject", FormatReference("Patient", patientID))
	params.Set("author", FormatReference("Practitioner", practitionerID))
	params.Set("_sort", "authored")

	entries, err := c.SearchAll(ctx, "QuestionnaireResponse", params, 0)
	if err != nil {
		return nil, fmt.Errorf("search questionnaire responses: %w", err)
	}
	return DecodeEntries[fhir.QuestionnaireResponse](entries)
}

// CreateQuestionnaireResponse POSTs qr and returns the stored representation.
func (c *Client) CreateQuestionnaireResponse(ctx context.Context, qr *fhir.QuestionnaireResponse) (*fhir.QuestionnaireResponse, error) {
	var out fhir.QuestionnaireResponse
	if err := c.Create(ctx, *qr, &out); err != nil {
		return nil, fmt.Errorf("create questionnaire response: %w", err)
	}
	if out.Id == nil {
		out = *qr
	}
	return &out, nil
}

// FindQuestionnairesByTitle returns every Questionnaire whose title matches
// exactly. The server's title search is a prefix match, so results are
// filtered again here.
func (c *Client) FindQuestionnairesByTitle(ctx context.Context, title string) ([]*fhir.Questionnaire, error) {
	params := url.Values{}
	params.Set("title", title)

	entries, err := c.SearchAll(ctx, "Questionnaire", params, 0)
	if err != nil {
		return nil, fmt.Errorf("search questionnaires: %w", err)
	}
	all, err := DecodeEntries[fhir.Questionnaire](entries)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, q := range all {
		if q.Title != nil && *q.Title == title {
			out = append(out, q)
		}
	}
	return out, nil
}

// PutQuestionnaire creates or replaces a Questionnaire. When q has no id a
// server-assigned one is requested with POST. The whole resource is sent, so
// fields this service never reads survive a round trip.
func (c *Client) PutQuestionnaire(ctx context.Context, q *fhir.Questionnaire) (*fhir.Questionnaire, error) {
	var out fhir.Questionnaire
	var err error
	if q.Id == nil || *q.Id == "" {
		err = c.Create(ctx, *q, &out)
	} else {
		err = c.Update(ctx, FormatReference("Questionnaire", *q.Id), *q, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("store questionnaire: %w", err)
	}
	if out.Id == nil {
		out = *q
	}
	return &out, nil
}

// DeleteQuestionnaire removes Questionnaire/id.
func (c *Client) DeleteQuestionnaire(ctx context.Context, id string) error {
	if err := c.Delete(ctx, FormatReference("Questionnaire", id)); err != nil {
		return fmt.Errorf("delete questionnaire %s: %w", id, err)
	}
	return nil
}
