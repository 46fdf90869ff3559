package questionnaire

import (
	"errors"
	"testing"
)

func TestDefaultCatalog_SkincareCheckup(t *testing.T) {
	defs, err := DefaultCatalog().Get(DefaultTitle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 15 {
		t.Fatalf("expected 15 questions, got %d", len(defs))
	}
	for i, d := range defs {
		if d.Text == "" || len(d.Options) < 2 {
			t.Errorf("question %d is incomplete: %+v", i+1, d)
		}
		for _, o := range d.Options {
			if _, ok := o.IntValue(); !ok || o.ValueType != ValueInteger {
				t.Errorf("question %d option %q is not an integer option", i+1, o.Text)
			}
		}
	}
	if !defs[7].Allows(-3) || defs[7].Options[3].Text != "Haven’t noticed yet" {
		t.Errorf("unexpected wrinkle question options: %+v", defs[7].Options)
	}
}

func TestCatalog_GetUnknown(t *testing.T) {
	_, err := DefaultCatalog().Get("nope")
	if !errors.Is(err, ErrUnknownQuestionnaire) {
		t.Errorf("expected ErrUnknownQuestionnaire, got %v", err)
	}
	if _, err := DefaultCatalog().ChartQuestions("nope"); !errors.Is(err, ErrUnknownQuestionnaire) {
		t.Errorf("expected ErrUnknownQuestionnaire, got %v", err)
	}
}

func TestCatalog_ChartQuestions(t *testing.T) {
	questions, err := DefaultCatalog().ChartQuestions(DefaultTitle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(questions) != 15 {
		t.Fatalf("expected 15 questions, got %d", len(questions))
	}
	if questions[1].Text != "Do you frequently experience acne or skin rashes?" {
		t.Errorf("unexpected question 2 text %q", questions[1].Text)
	}
}

func TestQuestionDefinition_Allows(t *testing.T) {
	d := QuestionDefinition{Text: "q", Options: []Option{
		intOption("Yes", -1),
		{Text: "Maybe", Value: "maybe", ValueType: ValueString},
	}}
	if !d.Allows(-1) {
		t.Error("expected -1 to be allowed")
	}
	if d.Allows(0) {
		t.Error("expected 0 to be rejected")
	}
}

func TestCatalog_Titles(t *testing.T) {
	c := Catalog{"b": nil, "a": nil}
	titles := c.Titles()
	if len(titles) != 2 || titles[0] != "a" || titles[1] != "b" {
		t.Errorf("unexpected titles: %v", titles)
	}
}
