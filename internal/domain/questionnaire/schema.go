package questionnaire

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const checkupSchemaURL = "schema://checkup-submission.json"

const checkupSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["answers"],
	"additionalProperties": false,
	"properties": {
		"answers": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "integer"}
		}
	}
}`

var (
	checkupSchemaOnce sync.Once
	checkupSchema     *jsonschema.Schema
	checkupSchemaErr  error
)

func compiledCheckupSchema() (*jsonschema.Schema, error) {
	checkupSchemaOnce.Do(func() {
		var def any
		if err := json.Unmarshal([]byte(checkupSchemaJSON), &def); err != nil {
			checkupSchemaErr = fmt.Errorf("parse checkup schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(checkupSchemaURL, def); err != nil {
			checkupSchemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		checkupSchema, checkupSchemaErr = c.Compile(checkupSchemaURL)
	})
	return checkupSchema, checkupSchemaErr
}

// CheckupRequest is the body of a checkup submission.
type CheckupRequest struct {
	Answers []int `json:"answers"`
}

// DecodeCheckup validates raw against the checkup schema and decodes it.
// Validation failures wrap ErrInvalidAnswer.
func DecodeCheckup(raw []byte) (*CheckupRequest, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrInvalidAnswer, err)
	}

	schema, err := compiledCheckupSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}

	var req CheckupRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	return &req, nil
}
