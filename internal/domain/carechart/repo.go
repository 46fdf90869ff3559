package carechart

import (
	"context"
)

// SubmissionRepository stores checkup submissions.
type SubmissionRepository interface {
	// ListSubmissions returns every submission of questionnaireTitle that
	// practitionerID recorded for patientID, oldest first.
	ListSubmissions(ctx context.Context, practitionerID, patientID, questionnaireTitle string) ([]*Submission, error)
	CreateSubmission(ctx context.Context, rec *SubmissionRecord) error
}

type PatientRepository interface {
	GetPatient(ctx context.Context, id string) (*Patient, error)
	// ListPatients returns every patient whose general practitioner is
	// practitionerID, including inactive ones.
	ListPatients(ctx context.Context, practitionerID string) ([]*Patient, error)
}

// QuestionSource resolves the chartable questions of a questionnaire.
type QuestionSource interface {
	ChartQuestions(title string) ([]Question, error)
}
