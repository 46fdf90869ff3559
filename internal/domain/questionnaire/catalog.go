// Package questionnaire owns the checkup questionnaire definitions, their
// publication as FHIR Questionnaire resources and checkup submission.
package questionnaire

import (
	"errors"
	"fmt"
	"sort"

	"github.com/carechart/carechart/internal/domain/carechart"
)

var (
	ErrUnknownQuestionnaire  = errors.New("unknown questionnaire")
	ErrQuestionnaireNotFound = errors.New("questionnaire not published")
	ErrDuplicateTitle        = errors.New("multiple questionnaires share this title")
	ErrInvalidAnswer         = errors.New("invalid answer")
)

// ValueType is the FHIR value[x] type of an answer option.
type ValueType string

const (
	ValueString  ValueType = "string"
	ValueBoolean ValueType = "boolean"
	ValueInteger ValueType = "integer"
)

// Option is one selectable answer. Value holds a string, bool or int
// matching ValueType.
type Option struct {
	Text      string      `json:"text"`
	Value     interface{} `json:"value"`
	ValueType ValueType   `json:"value_type,omitempty"`
}

// IntValue returns the option weight when the value is an integer.
func (o Option) IntValue() (int, bool) {
	v, ok := o.Value.(int)
	return v, ok
}

// QuestionDefinition is one question and its options.
type QuestionDefinition struct {
	Text    string   `json:"q"`
	Options []Option `json:"options"`
}

// Allows reports whether value is the weight of one of the options.
func (d QuestionDefinition) Allows(value int) bool {
	for _, o := range d.Options {
		if v, ok := o.IntValue(); ok && v == value {
			return true
		}
	}
	return false
}

// Catalog maps questionnaire titles to their definitions.
type Catalog map[string][]QuestionDefinition

func intOption(text string, value int) Option {
	return Option{Text: text, Value: value, ValueType: ValueInteger}
}

func yesNo(yes, no int) []Option {
	return []Option{intOption("Yes", yes), intOption("No", no)}
}

// DefaultTitle is the questionnaire seeded on first start.
const DefaultTitle = "skincare-checkup-v.1.0"

// DefaultCatalog returns the built-in skincare checkup. Negative weights mark
// a worsening symptom.
func DefaultCatalog() Catalog {
	return Catalog{
		DefaultTitle: {
			{"How does your skin typically feel a few hours after cleansing?", []Option{
				intOption("Oily/Shiny", -1),
				intOption("Dry/Tight", -1),
				intOption("Normal/Balanced", 1),
			}},
			{"Do you frequently experience acne or skin rashes?", yesNo(-1, 1)},
			{"How sensitive is your skin to new skincare products?", []Option{
				intOption("Highly sensitive", -2),
				intOption("Moderately sensitive", -1),
				intOption("Not sensitive", 0),
			}},
			{"Does your skin get irritated by environmental factors (wind, cold, pollution)?", []Option{
				intOption("Often", -2),
				intOption("Sometimes", -1),
				intOption("No", 0),
			}},
			{"Have you noticed uneven skin tone or dark spots recently?", yesNo(-1, 1)},
			{"How does your skin react to sun exposure?", []Option{
				intOption("Burns easily", -2),
				intOption("Tans easily", -1),
				intOption("Rarely burns or tans", 0),
			}},
			{"Have you developed new freckles or age spots in the past month?", yesNo(-1, 1)},
			{"At what age did you notice your first fine lines or wrinkles?", []Option{
				intOption("Under 30", -3),
				intOption("30-40", -2),
				intOption("Over 40", -1),
				intOption("Haven’t noticed yet", 0),
			}},
			{"Have you noticed increased sagging or loss of firmness in your skin?", yesNo(-1, 0)},
			{"How would you describe your skin's elasticity?", []Option{
				intOption("Good, bounces back quickly", 1),
				intOption("Moderate, sometimes feels saggy", -1),
				intOption("Poor, looks loose or saggy", -2),
			}},
			{"Do you regularly experience dry or flaky skin?", yesNo(-1, 0)},
			{"Do you suffer from redness or frequent flushing of the skin?", yesNo(-1, 0)},
			{"How often do you notice clogged or enlarged pores?", []Option{
				intOption("Often", -2),
				intOption("Sometimes", -1),
				intOption("Rarely or never", 1),
			}},
			{"Do you feel tightness or discomfort after cleansing your skin?", yesNo(-1, 1)},
			{"Do you feel tingling or burning when applying skincare products?", yesNo(-1, 0)},
		},
	}
}

// Get returns the definitions for title.
func (c Catalog) Get(title string) ([]QuestionDefinition, error) {
	defs, ok := c[title]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuestionnaire, title)
	}
	return defs, nil
}

// ChartQuestions projects the definitions of title to chart questions.
func (c Catalog) ChartQuestions(title string) ([]carechart.Question, error) {
	defs, err := c.Get(title)
	if err != nil {
		return nil, err
	}
	return chartQuestions(defs), nil
}

func chartQuestions(defs []QuestionDefinition) []carechart.Question {
	out := make([]carechart.Question, len(defs))
	for i, d := range defs {
		out[i] = carechart.Question{Text: d.Text}
	}
	return out
}

// Titles lists the catalog titles in sorted order.
func (c Catalog) Titles() []string {
	titles := make([]string, 0, len(c))
	for t := range c {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}
