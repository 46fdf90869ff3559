package carechart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/caramel/to"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"

	"github.com/carechart/carechart/internal/platform/fhirclient"
)

// FHIRAPI is the part of the FHIR client the repositories use.
type FHIRAPI interface {
	GetPatient(ctx context.Context, id string) (*fhir.Patient, error)
	ListPatients(ctx context.Context, practitionerID string) ([]*fhir.Patient, error)
	SearchQuestionnaireResponses(ctx context.Context, practitionerID, patientID string) ([]*fhir.QuestionnaireResponse, error)
	CreateQuestionnaireResponse(ctx context.Context, qr *fhir.QuestionnaireResponse) (*fhir.QuestionnaireResponse, error)
}

// =========== Submission Repository ===========

type submissionRepoFHIR struct {
	api    FHIRAPI
	logger zerolog.Logger
}

// NewSubmissionRepoFHIR stores submissions as QuestionnaireResponse resources.
func NewSubmissionRepoFHIR(api FHIRAPI, logger zerolog.Logger) SubmissionRepository {
	return &submissionRepoFHIR{api: api, logger: logger}
}

func (r *submissionRepoFHIR) ListSubmissions(ctx context.Context, practitionerID, patientID, questionnaireTitle string) ([]*Submission, error) {
	responses, err := r.api.SearchQuestionnaireResponses(ctx, practitionerID, patientID)
	if err != nil {
		return nil, err
	}
	return SubmissionsFromResponses(responses, questionnaireTitle, r.logger)
}

// SubmissionsFromResponses keeps the responses to questionnaireTitle and
// returns them as submissions sorted by authored time.
func SubmissionsFromResponses(responses []*fhir.QuestionnaireResponse, questionnaireTitle string, logger zerolog.Logger) ([]*Submission, error) {
	suffix := "/" + questionnaireTitle
	var out []*Submission
	for _, qr := range responses {
		if !strings.HasSuffix(value(qr.Questionnaire), suffix) {
			continue
		}
		sub, err := toSubmission(qr, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Authored.Before(out[j].Authored)
	})
	return out, nil
}

func toSubmission(qr *fhir.QuestionnaireResponse, logger zerolog.Logger) (*Submission, error) {
	id := value(qr.Id)
	authored, err := ParseAuthored(value(qr.Authored))
	if err != nil {
		return nil, fmt.Errorf("questionnaire response %s: %w", id, err)
	}

	answers := make(map[int]int, len(qr.Item))
	for _, item := range qr.Item {
		linkID, err := strconv.Atoi(item.LinkId)
		if err != nil || linkID < 1 {
			logger.Warn().
				Str("questionnaire_response", id).
				Str("link_id", item.LinkId).
				Msg("skipping answer with non-numeric linkId")
			continue
		}
		if len(item.Answer) == 0 || item.Answer[0].ValueInteger == nil {
			continue
		}
		answers[linkID] = *item.Answer[0].ValueInteger
	}
	return &Submission{ID: id, Authored: authored, Answers: answers}, nil
}

func (r *submissionRepoFHIR) CreateSubmission(ctx context.Context, rec *SubmissionRecord) error {
	out, err := r.api.CreateQuestionnaireResponse(ctx, toQuestionnaireResponse(rec))
	if err != nil {
		return err
	}
	if id := value(out.Id); id != "" {
		rec.ID = id
	}
	return nil
}

func toQuestionnaireResponse(rec *SubmissionRecord) *fhir.QuestionnaireResponse {
	items := make([]fhir.QuestionnaireResponseItem, len(rec.Answers))
	for i, v := range rec.Answers {
		items[i] = fhir.QuestionnaireResponseItem{
			LinkId: strconv.Itoa(i + 1),
			Answer: []fhir.QuestionnaireResponseItemAnswer{{ValueInteger: to.Ptr(v)}},
		}
	}
	return &fhir.QuestionnaireResponse{
		Status:        fhir.QuestionnaireResponseStatusCompleted,
		Questionnaire: to.Ptr(fhirclient.FormatReference("Questionnaire", rec.QuestionnaireTitle)),
		Subject:       &fhir.Reference{Reference: to.Ptr(fhirclient.FormatReference("Patient", rec.PatientID))},
		Author:        &fhir.Reference{Reference: to.Ptr(fhirclient.FormatReference("Practitioner", rec.PractitionerID))},
		Authored:      to.Ptr(rec.Authored.UTC().Format("2006-01-02T15:04:05.999999Z07:00")),
		Item:          items,
	}
}

// =========== Patient Repository ===========

type patientRepoFHIR struct {
	api FHIRAPI
}

func NewPatientRepoFHIR(api FHIRAPI) PatientRepository {
	return &patientRepoFHIR{api: api}
}

func (r *patientRepoFHIR) GetPatient(ctx context.Context, id string) (*Patient, error) {
	p, err := r.api.GetPatient(ctx, id)
	if err != nil {
		if errors.Is(err, fhirclient.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return toPatient(p), nil
}

func (r *patientRepoFHIR) ListPatients(ctx context.Context, practitionerID string) ([]*Patient, error) {
	found, err := r.api.ListPatients(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	out := make([]*Patient, len(found))
	for i, p := range found {
		out[i] = toPatient(p)
	}
	return out, nil
}

// toPatient reads the fields the dashboard shows. A missing active flag means
// active.
func toPatient(p *fhir.Patient) *Patient {
	out := &Patient{
		ID:        value(p.Id),
		Active:    p.Active == nil || *p.Active,
		BirthDate: value(p.BirthDate),
	}
	if p.Gender != nil {
		out.Gender = p.Gender.String()
	}
	if len(p.Name) > 0 {
		out.Name = displayName(p.Name[0])
	}
	for _, gp := range p.GeneralPractitioner {
		if ref := value(gp.Reference); ref != "" {
			out.GeneralPractitioners = append(out.GeneralPractitioners, fhirclient.ReferenceID(ref))
		}
	}
	return out
}

// displayName joins prefix, given names and family name, skipping blanks.
func displayName(n fhir.HumanName) string {
	if text := value(n.Text); text != "" {
		return text
	}
	parts := append(append([]string{}, n.Prefix...), n.Given...)
	parts = append(parts, value(n.Family))
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
