package questionnaire

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"

	"github.com/carechart/carechart/internal/domain/carechart"
)

// Recorder stores a checkup once ownership has been verified.
type Recorder interface {
	RecordSubmission(ctx context.Context, rec *carechart.SubmissionRecord) error
}

type Service struct {
	store       Store
	catalog     Catalog
	recorder    Recorder
	activeTitle string
	logger      zerolog.Logger
	newID       func() string
}

func NewService(store Store, catalog Catalog, recorder Recorder, activeTitle string, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		catalog:     catalog,
		recorder:    recorder,
		activeTitle: activeTitle,
		logger:      logger,
		newID:       func() string { return uuid.New().String() },
	}
}

// ActiveTitle is the questionnaire used for new checkups.
func (s *Service) ActiveTitle() string {
	return s.activeTitle
}

// EnsurePublished publishes the catalog definition of title unless a
// questionnaire with that title already exists. It reports whether a new
// resource was created.
func (s *Service) EnsurePublished(ctx context.Context, title string) (bool, error) {
	existing, err := s.store.FindByTitle(ctx, title)
	if err != nil {
		return false, fmt.Errorf("look up questionnaire %q: %w", title, err)
	}
	if existing != nil {
		s.logger.Debug().Str("title", title).Str("id", resourceID(existing)).Msg("questionnaire already published")
		return false, nil
	}

	defs, err := s.catalog.Get(title)
	if err != nil {
		return false, err
	}
	resource, err := BuildFHIRQuestionnaire(s.newID(), title, defs)
	if err != nil {
		return false, err
	}
	stored, err := s.store.Put(ctx, resource)
	if err != nil {
		return false, fmt.Errorf("publish questionnaire %q: %w", title, err)
	}

	s.logger.Info().Str("title", title).Str("id", resourceID(stored)).Int("questions", len(defs)).Msg("questionnaire published")
	return true, nil
}

func (s *Service) find(ctx context.Context, title string) (string, error) {
	q, err := s.store.FindByTitle(ctx, title)
	if err != nil {
		return "", err
	}
	if q == nil {
		return "", fmt.Errorf("%w: %s", ErrQuestionnaireNotFound, title)
	}
	return resourceID(q), nil
}

// Deactivate retires the published questionnaire. The stored resource is sent
// back whole with only its status changed.
func (s *Service) Deactivate(ctx context.Context, title string) error {
	q, err := s.store.FindByTitle(ctx, title)
	if err != nil {
		return err
	}
	if q == nil {
		return fmt.Errorf("%w: %s", ErrQuestionnaireNotFound, title)
	}
	q.Status = fhir.PublicationStatusRetired
	if _, err := s.store.Put(ctx, q); err != nil {
		return fmt.Errorf("deactivate questionnaire %q: %w", title, err)
	}
	s.logger.Info().Str("title", title).Str("id", resourceID(q)).Msg("questionnaire deactivated")
	return nil
}

// Delete removes the published questionnaire.
func (s *Service) Delete(ctx context.Context, title string) error {
	id, err := s.find(ctx, title)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("title", title).Str("id", id).Msg("questionnaire deleted")
	return nil
}

// ActiveQuiz returns the questions of the active questionnaire. The published
// resource wins; the catalog is used while nothing active is published.
func (s *Service) ActiveQuiz(ctx context.Context) ([]QuestionDefinition, error) {
	q, err := s.store.FindByTitle(ctx, s.activeTitle)
	if err != nil {
		return nil, err
	}
	if q != nil && q.Status == fhir.PublicationStatusActive {
		return QuestionsFromFHIR(q), nil
	}
	return s.catalog.Get(s.activeTitle)
}

// SubmitCheckup validates answers against the active quiz and records them.
// answers[i] is the weight chosen for question i+1.
func (s *Service) SubmitCheckup(ctx context.Context, practitionerID, patientID string, answers []int) (*carechart.SubmissionRecord, error) {
	defs, err := s.ActiveQuiz(ctx)
	if err != nil {
		return nil, err
	}
	if len(answers) != len(defs) {
		return nil, fmt.Errorf("%w: expected %d answers, got %d", ErrInvalidAnswer, len(defs), len(answers))
	}
	for i, v := range answers {
		if !defs[i].Allows(v) {
			return nil, fmt.Errorf("%w: %d is not an option of question %d", ErrInvalidAnswer, v, i+1)
		}
	}

	rec := &carechart.SubmissionRecord{
		QuestionnaireTitle: s.activeTitle,
		PatientID:          patientID,
		PractitionerID:     practitionerID,
		Answers:            answers,
	}
	if err := s.recorder.RecordSubmission(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func resourceID(q *fhir.Questionnaire) string {
	if q == nil || q.Id == nil {
		return ""
	}
	return *q.Id
}
