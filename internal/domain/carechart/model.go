package carechart

import (
	"fmt"
	"time"
)

// Question is one chartable question. Identity is positional: the question at
// index i is answered by linkId i+1 in a submission.
type Question struct {
	Text string `json:"text"`
}

// Submission is one completed checkup. Answers maps the 1-based question index
// to the integer weight of the selected option. Missing answers count as 0.
type Submission struct {
	ID       string      `json:"id,omitempty"`
	Authored time.Time   `json:"authored"`
	Answers  map[int]int `json:"answers"`
}

// Bounds configures the progression scale. Callers must keep
// Min <= Initial <= Max; other combinations are undefined.
type Bounds struct {
	Initial int `json:"initial"`
	Min     int `json:"min"`
	Max     int `json:"max"`
}

// Validate reports whether the bounds satisfy Min <= Initial <= Max.
func (b Bounds) Validate() error {
	if b.Min > b.Max {
		return fmt.Errorf("min %d is greater than max %d", b.Min, b.Max)
	}
	if b.Initial < b.Min || b.Initial > b.Max {
		return fmt.Errorf("initial %d is outside [%d, %d]", b.Initial, b.Min, b.Max)
	}
	return nil
}

// Chart is the line-chart payload handed to the dashboard. Its JSON form is
// consumed directly by Chart.js.
type Chart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one question's series plus presentation metadata.
type Dataset struct {
	Label            string  `json:"label"`
	Data             []int   `json:"data"`
	BorderColor      string  `json:"borderColor"`
	BackgroundColor  string  `json:"backgroundColor"`
	BorderWidth      int     `json:"borderWidth"`
	Tension          float64 `json:"tension"`
	PointRadius      int     `json:"pointRadius"`
	PointHoverRadius int     `json:"pointHoverRadius"`
}

// Patient is the slice of a FHIR Patient the care chart and the client list
// need. Inactive patients keep their chart.
type Patient struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name,omitempty"`
	Gender               string   `json:"gender,omitempty"`
	BirthDate            string   `json:"birth_date,omitempty"`
	Active               bool     `json:"active"`
	GeneralPractitioners []string `json:"general_practitioners"`
}

// HasPractitioner reports whether practitionerID is one of the patient's
// general practitioners.
func (p *Patient) HasPractitioner(practitionerID string) bool {
	for _, gp := range p.GeneralPractitioners {
		if gp == practitionerID {
			return true
		}
	}
	return false
}

// SubmissionRecord is a checkup about to be stored.
type SubmissionRecord struct {
	ID                 string    `json:"id"`
	QuestionnaireTitle string    `json:"questionnaire"`
	PatientID          string    `json:"patient_id"`
	PractitionerID     string    `json:"practitioner_id"`
	Authored           time.Time `json:"authored"`
	Answers            []int     `json:"answers"`
}

// Submission converts the positional answer list to the index map the engine reads.
func (r *SubmissionRecord) Submission() *Submission {
	answers := make(map[int]int, len(r.Answers))
	for i, v := range r.Answers {
		answers[i+1] = v
	}
	return &Submission{ID: r.ID, Authored: r.Authored, Answers: answers}
}
