package questionnaire

import (
	"errors"
	"testing"
)

func TestDecodeCheckup(t *testing.T) {
	req, err := DecodeCheckup([]byte(`{"answers":[1,-1,0]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Answers) != 3 || req.Answers[1] != -1 {
		t.Errorf("unexpected answers: %v", req.Answers)
	}
}

func TestDecodeCheckup_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":       `{"answers":`,
		"missing field":  `{}`,
		"empty answers":  `{"answers":[]}`,
		"fraction":       `{"answers":[1.5]}`,
		"string answer":  `{"answers":["yes"]}`,
		"extra property": `{"answers":[1],"patient":"p"}`,
		"not an object":  `[1,2]`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCheckup([]byte(body))
			if !errors.Is(err, ErrInvalidAnswer) {
				t.Errorf("expected ErrInvalidAnswer, got %v", err)
			}
		})
	}
}
