package questionnaire

import (
	"context"
	"fmt"

	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// Store persists published Questionnaire resources.
type Store interface {
	// FindByTitle returns the questionnaire titled title, or nil when none is
	// published. More than one match is ErrDuplicateTitle.
	FindByTitle(ctx context.Context, title string) (*fhir.Questionnaire, error)
	Put(ctx context.Context, q *fhir.Questionnaire) (*fhir.Questionnaire, error)
	Delete(ctx context.Context, id string) error
}

// FHIRAPI is the part of the FHIR client the store uses.
type FHIRAPI interface {
	FindQuestionnairesByTitle(ctx context.Context, title string) ([]*fhir.Questionnaire, error)
	PutQuestionnaire(ctx context.Context, q *fhir.Questionnaire) (*fhir.Questionnaire, error)
	DeleteQuestionnaire(ctx context.Context, id string) error
}

type storeFHIR struct {
	api FHIRAPI
}

func NewStoreFHIR(api FHIRAPI) Store {
	return &storeFHIR{api: api}
}

func (s *storeFHIR) FindByTitle(ctx context.Context, title string) (*fhir.Questionnaire, error) {
	found, err := s.api.FindQuestionnairesByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s (%d found)", ErrDuplicateTitle, title, len(found))
	}
}

func (s *storeFHIR) Put(ctx context.Context, q *fhir.Questionnaire) (*fhir.Questionnaire, error) {
	return s.api.PutQuestionnaire(ctx, q)
}

func (s *storeFHIR) Delete(ctx context.Context, id string) error {
	return s.api.DeleteQuestionnaire(ctx, id)
}
