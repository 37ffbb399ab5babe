package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// GenerateGuideJSONSchema produces a JSON Schema Draft 2020-12 document
// from the guide/v1 Go types.
func GenerateGuideJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Guide{})
	s.ID = "https://github.com/ormasoftchile/labguide/schemas/guide-v1.json"
	s.Title = "Guided lab guide/v1"
	s.Description = "Schema for guide/v1 documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal guide schema")
	}
	return data, nil
}

// GeneratePlanJSONSchema produces the JSON Schema for plan/v1 documents.
func GeneratePlanJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	s := r.Reflect(&Plan{})
	s.ID = "https://github.com/ormasoftchile/labguide/schemas/plan-v1.json"
	s.Title = "Exam plan plan/v1"
	s.Description = "Schema for plan/v1 documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal plan schema")
	}
	return data, nil
}
