package questionnaire

import (
	"testing"

	"github.com/zorgbijjou/golang-fhir-models/fhir-models/caramel/to"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"

	"github.com/carechart/carechart/internal/platform/fhirclient"
)

func labelled(label string) []fhir.Extension {
	return []fhir.Extension{{Url: fhirclient.LabelExtensionURL, ValueString: to.Ptr(label)}}
}

func TestBuildFHIRQuestionnaire(t *testing.T) {
	defs := []QuestionDefinition{
		{Text: "Acne?", Options: yesNo(-1, 1)},
		{Text: "Skin type", Options: []Option{
			{Text: "Oily", Value: "oily", ValueType: ValueString},
			{Text: "", Value: true, ValueType: ValueBoolean},
		}},
	}

	q, err := BuildFHIRQuestionnaire("q-id", "checkup", defs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *q.Id != "q-id" || *q.Title != "checkup" || q.Status != fhir.PublicationStatusActive {
		t.Errorf("unexpected header: %+v", q)
	}
	if len(q.SubjectType) != 1 || q.SubjectType[0] != fhir.ResourceTypePatient {
		t.Errorf("unexpected subjectType: %v", q.SubjectType)
	}
	if q.Item[0].LinkId != "q1" || q.Item[1].LinkId != "q2" || q.Item[0].Type != fhir.QuestionnaireItemTypeChoice {
		t.Errorf("unexpected items: %+v", q.Item)
	}

	yes := q.Item[0].AnswerOption[0]
	if yes.ValueInteger == nil || *yes.ValueInteger != -1 || optionLabel(yes) != "Yes" {
		t.Errorf("unexpected integer option: %+v", yes)
	}
	if yes.Extension[0].Url != fhirclient.LabelExtensionURL {
		t.Errorf("expected label extension, got %s", yes.Extension[0].Url)
	}
	oily := q.Item[1].AnswerOption[0]
	if oily.ValueString == nil || *oily.ValueString != "oily" {
		t.Errorf("unexpected string option: %+v", oily)
	}
	boolean := q.Item[1].AnswerOption[1]
	if boolean.ValueString == nil || *boolean.ValueString != "true" || optionLabel(boolean) != "true" {
		t.Errorf("expected boolean to be sent as a string, got %+v", boolean)
	}
}

func TestBuildFHIRQuestionnaire_NoID(t *testing.T) {
	q, err := BuildFHIRQuestionnaire("", "checkup", []QuestionDefinition{{Text: "q", Options: yesNo(-1, 1)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Id != nil {
		t.Errorf("expected no id so the server assigns one, got %q", *q.Id)
	}
}

func TestBuildFHIRQuestionnaire_Rejects(t *testing.T) {
	tests := map[string][]QuestionDefinition{
		"empty text":       {{Text: "", Options: yesNo(-1, 1)}},
		"unsupported type": {{Text: "q", Options: []Option{{Text: "d", Value: "2025-01-01", ValueType: "date"}}}},
		"mismatched value": {{Text: "q", Options: []Option{{Text: "x", Value: "1", ValueType: ValueInteger}}}},
	}
	for name, defs := range tests {
		if _, err := BuildFHIRQuestionnaire("id", "t", defs); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestQuestionsFromFHIR(t *testing.T) {
	q := &fhir.Questionnaire{Item: []fhir.QuestionnaireItem{
		{LinkId: "q1", AnswerOption: []fhir.QuestionnaireItemAnswerOption{
			{ValueString: to.Ptr("2"), Extension: labelled("Two")},
			{ValueString: to.Ptr("n/a"), Extension: labelled("None")},
			{ValueString: to.Ptr("false"), Extension: labelled("No")},
			{ValueInteger: to.Ptr(7)},
		}},
	}}

	defs := QuestionsFromFHIR(q)
	if len(defs) != 1 || defs[0].Text != "q1" {
		t.Fatalf("expected linkId to stand in for missing text, got %+v", defs)
	}
	opts := defs[0].Options
	if v, ok := opts[0].IntValue(); !ok || v != 2 || opts[0].Text != "Two" {
		t.Errorf("expected numeric string to become integer, got %+v", opts[0])
	}
	if opts[1].Value != "n/a" || opts[1].ValueType != ValueString {
		t.Errorf("expected non-numeric string to stay a string, got %+v", opts[1])
	}
	if opts[2].Value != false || opts[2].ValueType != ValueBoolean {
		t.Errorf("expected \"false\" to become a boolean, got %+v", opts[2])
	}
	if opts[3].Text != "7" || opts[3].ValueType != ValueInteger {
		t.Errorf("expected unlabelled option to show its value, got %+v", opts[3])
	}
	if QuestionsFromFHIR(nil) != nil {
		t.Error("expected nil for nil questionnaire")
	}
}

func TestQuestionsFromFHIR_DefaultCatalogSurvivesPublication(t *testing.T) {
	defs, _ := DefaultCatalog().Get(DefaultTitle)
	q, err := BuildFHIRQuestionnaire("id", DefaultTitle, defs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back := QuestionsFromFHIR(q)
	if len(back) != len(defs) {
		t.Fatalf("expected %d questions, got %d", len(defs), len(back))
	}
	if back[9].Text != defs[9].Text || !back[9].Allows(-2) {
		t.Errorf("question 10 changed during publication: %+v", back[9])
	}
}
