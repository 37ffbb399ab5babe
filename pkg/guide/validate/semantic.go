package validate

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const guideSchemaURL = "guide-v1.json"

var (
	compiledOnce sync.Once
	compiled     *sjsonschema.Schema
	compileErr   error
)

// guideSchema compiles the reflected guide schema once per process.
func guideSchema() (*sjsonschema.Schema, error) {
	compiledOnce.Do(func() {
		schemaJSON, err := schema.GenerateGuideJSONSchema()
		if err != nil {
			compileErr = err
			return
		}
		var schemaDoc any
		if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
			compileErr = err
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource(guideSchemaURL, schemaDoc); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = c.Compile(guideSchemaURL)
	})
	return compiled, compileErr
}

// validateSemantic validates the guide against its generated JSON Schema.
func validateSemantic(g *schema.Guide) []*ValidationError {
	sch, err := guideSchema()
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "compile schema: %v", err)}
	}

	data, err := json.Marshal(g)
	if err != nil {
		return []*ValidationError{errorf("semantic", "", "marshal for schema validation: %v", err)}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{errorf("semantic", "", "unmarshal document: %v", err)}
	}

	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return []*ValidationError{errorf("semantic", "", "%s", err)}
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, errorf("semantic", strings.Join(cause.InstanceLocation, "/"), "%v", cause.ErrorKind))
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
