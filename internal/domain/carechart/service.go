package carechart

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carechart/carechart/pkg/pagination"
)

// Config holds the chart settings that come from configuration.
type Config struct {
	Bounds             Bounds
	QuestionnaireTitle string
	// MaxSubmissions caps how many of the most recent points are shown. The
	// whole history is still folded. Zero means no cap.
	MaxSubmissions int
}

type Service struct {
	submissions SubmissionRepository
	patients    PatientRepository
	questions   QuestionSource
	cfg         Config
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(
	submissions SubmissionRepository,
	patients PatientRepository,
	questions QuestionSource,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	return &Service{
		submissions: submissions,
		patients:    patients,
		questions:   questions,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// QuestionnaireTitle is the questionnaire whose submissions are charted.
func (s *Service) QuestionnaireTitle() string {
	return s.cfg.QuestionnaireTitle
}

// authorize loads the patient and checks that practitionerID is one of its
// general practitioners.
func (s *Service) authorize(ctx context.Context, practitionerID, patientID string) (*Patient, error) {
	if practitionerID == "" || patientID == "" {
		return nil, ErrNotAssigned
	}
	patient, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !patient.HasPractitioner(practitionerID) {
		return nil, ErrNotAssigned
	}
	return patient, nil
}

// ChartForPractitioner builds the care chart a professional sees for one of
// their clients.
func (s *Service) ChartForPractitioner(ctx context.Context, practitionerID, patientID string) (*Chart, error) {
	if _, err := s.authorize(ctx, practitionerID, patientID); err != nil {
		return nil, err
	}
	return s.chart(ctx, practitionerID, patientID)
}

// ChartForPatient builds the chart a client sees on their dashboard. It uses
// the submissions of the patient's first general practitioner.
func (s *Service) ChartForPatient(ctx context.Context, patientID string) (*Chart, error) {
	patient, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(patient.GeneralPractitioners) == 0 {
		return nil, ErrNotAssigned
	}
	return s.chart(ctx, patient.GeneralPractitioners[0], patientID)
}

func (s *Service) chart(ctx context.Context, practitionerID, patientID string) (*Chart, error) {
	subs, err := s.submissions.ListSubmissions(ctx, practitionerID, patientID, s.cfg.QuestionnaireTitle)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	if len(subs) == 0 {
		return nil, ErrNoSubmissions
	}

	questions, err := s.questions.ChartQuestions(s.cfg.QuestionnaireTitle)
	if err != nil {
		return nil, err
	}

	chart := BuildChart(subs, questions, s.cfg.Bounds).Last(s.cfg.MaxSubmissions)
	s.logger.Debug().
		Str("patient_id", patientID).
		Str("practitioner_id", practitionerID).
		Int("submissions", len(subs)).
		Msg("care chart built")
	return &chart, nil
}

// ListPatients returns one page of the professional's clients, active and
// inactive, and the total number of clients.
func (s *Service) ListPatients(ctx context.Context, practitionerID string, limit, offset int) ([]*Patient, int, error) {
	if practitionerID == "" {
		return nil, 0, ErrNotAssigned
	}
	patients, err := s.patients.ListPatients(ctx, practitionerID)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	return pagination.Slice(patients, pagination.Params{Limit: limit, Offset: offset}), len(patients), nil
}

// ListSubmissions returns one page of the checkup archive, newest first, and
// the total number of submissions.
func (s *Service) ListSubmissions(ctx context.Context, practitionerID, patientID string, limit, offset int) ([]*Submission, int, error) {
	if _, err := s.authorize(ctx, practitionerID, patientID); err != nil {
		return nil, 0, err
	}
	subs, err := s.submissions.ListSubmissions(ctx, practitionerID, patientID, s.cfg.QuestionnaireTitle)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}

	newest := make([]*Submission, len(subs))
	for i, sub := range subs {
		newest[len(subs)-1-i] = sub
	}
	return pagination.Slice(newest, pagination.Params{Limit: limit, Offset: offset}), len(newest), nil
}

// RecordSubmission checks ownership and stores rec. Authored defaults to now.
func (s *Service) RecordSubmission(ctx context.Context, rec *SubmissionRecord) error {
	if _, err := s.authorize(ctx, rec.PractitionerID, rec.PatientID); err != nil {
		return err
	}
	if rec.QuestionnaireTitle == "" {
		rec.QuestionnaireTitle = s.cfg.QuestionnaireTitle
	}
	if rec.Authored.IsZero() {
		rec.Authored = s.now().UTC()
	}
	if err := s.submissions.CreateSubmission(ctx, rec); err != nil {
		return fmt.Errorf("store submission: %w", err)
	}
	s.logger.Info().
		Str("submission_id", rec.ID).
		Str("patient_id", rec.PatientID).
		Str("practitioner_id", rec.PractitionerID).
		Msg("checkup recorded")
	return nil
}
