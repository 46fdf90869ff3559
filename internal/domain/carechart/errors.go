package carechart

import "errors"

var (
	// ErrNoSubmissions means the practitioner has not recorded any checkup for
	// the patient yet.
	ErrNoSubmissions = errors.New("no checkups recorded for this patient")
	// ErrNotAssigned means the practitioner is not one of the patient's
	// general practitioners.
	ErrNotAssigned = errors.New("practitioner is not assigned to this patient")
	// ErrPatientNotFound means the patient resource does not exist.
	ErrPatientNotFound = errors.New("patient not found")
)
