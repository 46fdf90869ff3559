package questionnaire

import (
	"fmt"
	"strconv"

	"github.com/zorgbijjou/golang-fhir-models/fhir-models/caramel/to"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"

	"github.com/carechart/carechart/internal/platform/fhirclient"
)

// BuildFHIRQuestionnaire renders defs as an active FHIR Questionnaire. Items
// get linkIds q1..qN and every option carries its text in the label extension.
// answerOption has no boolean value type, so booleans travel as the strings
// "true" and "false".
func BuildFHIRQuestionnaire(id, title string, defs []QuestionDefinition) (*fhir.Questionnaire, error) {
	items := make([]fhir.QuestionnaireItem, 0, len(defs))
	for i, d := range defs {
		if d.Text == "" {
			return nil, fmt.Errorf("question %d has no text", i+1)
		}
		item := fhir.QuestionnaireItem{
			LinkId: fmt.Sprintf("q%d", i+1),
			Text:   to.Ptr(d.Text),
			Type:   fhir.QuestionnaireItemTypeChoice,
		}
		for _, o := range d.Options {
			opt, err := answerOption(o)
			if err != nil {
				return nil, fmt.Errorf("question %q: %w", d.Text, err)
			}
			item.AnswerOption = append(item.AnswerOption, opt)
		}
		items = append(items, item)
	}

	q := &fhir.Questionnaire{
		Title:       to.Ptr(title),
		Status:      fhir.PublicationStatusActive,
		SubjectType: []fhir.ResourceType{fhir.ResourceTypePatient},
		Item:        items,
	}
	if id != "" {
		q.Id = to.Ptr(id)
	}
	return q, nil
}

func answerOption(o Option) (fhir.QuestionnaireItemAnswerOption, error) {
	label := o.Text
	if label == "" {
		label = fmt.Sprint(o.Value)
	}
	opt := fhir.QuestionnaireItemAnswerOption{
		Extension: []fhir.Extension{{Url: fhirclient.LabelExtensionURL, ValueString: to.Ptr(label)}},
	}

	switch o.ValueType {
	case ValueInteger:
		v, ok := o.Value.(int)
		if !ok {
			return opt, fmt.Errorf("option %q: value %v is not an integer", o.Text, o.Value)
		}
		opt.ValueInteger = to.Ptr(v)
	case ValueString:
		v, ok := o.Value.(string)
		if !ok {
			return opt, fmt.Errorf("option %q: value %v is not a string", o.Text, o.Value)
		}
		opt.ValueString = to.Ptr(v)
	case ValueBoolean:
		v, ok := o.Value.(bool)
		if !ok {
			return opt, fmt.Errorf("option %q: value %v is not a boolean", o.Text, o.Value)
		}
		opt.ValueString = to.Ptr(strconv.FormatBool(v))
	default:
		return opt, fmt.Errorf("unsupported value_type %q", o.ValueType)
	}
	return opt, nil
}

// QuestionsFromFHIR rebuilds the quiz from a published Questionnaire. A
// valueString that parses as an integer or as true/false is read back as that
// type.
func QuestionsFromFHIR(q *fhir.Questionnaire) []QuestionDefinition {
	if q == nil {
		return nil
	}
	defs := make([]QuestionDefinition, 0, len(q.Item))
	for _, item := range q.Item {
		text := item.LinkId
		if item.Text != nil && *item.Text != "" {
			text = *item.Text
		}
		def := QuestionDefinition{Text: text}
		for _, ao := range item.AnswerOption {
			def.Options = append(def.Options, optionFromFHIR(ao))
		}
		defs = append(defs, def)
	}
	return defs
}

func optionFromFHIR(ao fhir.QuestionnaireItemAnswerOption) Option {
	o := Option{Text: optionLabel(ao)}
	switch {
	case ao.ValueInteger != nil:
		o.Value, o.ValueType = *ao.ValueInteger, ValueInteger
	case ao.ValueString != nil:
		s := *ao.ValueString
		if n, err := strconv.Atoi(s); err == nil {
			o.Value, o.ValueType = n, ValueInteger
		} else if s == "true" || s == "false" {
			o.Value, o.ValueType = s == "true", ValueBoolean
		} else {
			o.Value, o.ValueType = s, ValueString
		}
	}
	return o
}

// optionLabel returns the label extension, falling back to the raw value.
func optionLabel(ao fhir.QuestionnaireItemAnswerOption) string {
	for _, ext := range ao.Extension {
		if ext.Url == fhirclient.LabelExtensionURL && ext.ValueString != nil {
			return *ext.ValueString
		}
	}
	switch {
	case ao.ValueString != nil:
		return *ao.ValueString
	case ao.ValueInteger != nil:
		return strconv.Itoa(*ao.ValueInteger)
	}
	return ""
}
