// Package validate implements the guide/v1 3-phase validation pipeline:
// structural → semantic → domain.
package validate

import (
	"fmt"

	"github.com/ormasoftchile/labguide/pkg/guide/schema"
)

// ValidationError represents one error or warning from the validation pipeline.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s at %s", e.Phase, e.Message, e.Path)
	}
	return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
}

func errorf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    phase,
		Path:     path,
		Message:  fmt.Sprintf(msg, args...),
		Severity: "error",
	}
}

func warningf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{
		Phase:    phase,
		Path:     path,
		Message:  fmt.Sprintf(msg, args...),
		Severity: "warning",
	}
}

// ValidateFile runs the full 3-phase pipeline on a guide file.
func ValidateFile(path string) (*schema.Guide, []*ValidationError) {
	// Phase 1: Structural (strict decode)
	g, err := schema.LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{errorf("structural", "", "failed to load: %s", err)}
	}
	return g, ValidateGuide(g)
}

// ValidateGuide runs phases 2+3 on an already-loaded guide.
func ValidateGuide(g *schema.Guide) []*ValidationError {
	var errs []*ValidationError

	// Phase 2: Semantic (JSON Schema validation)
	errs = append(errs, validateSemantic(g)...)

	// If we have semantic errors, don't proceed to domain
	if HasErrors(errs) {
		return errs
	}

	// Phase 3: Domain (hand-coded rules)
	errs = append(errs, validateDomain(g)...)
	return errs
}

// ValidatePlan checks an exam plan against the guides it references.
// lookup reports whether a guide id is known; nil skips that check.
func ValidatePlan(p *schema.Plan, lookup func(id string) bool) []*ValidationError {
	return validatePlanDomain(p, lookup)
}

// HasErrors reports whether any entry has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// Errors filters out warnings.
func Errors(errs []*ValidationError) []*ValidationError {
	var out []*ValidationError
	for _, e := range errs {
		if e.Severity == "error" {
			out = append(out, e)
		}
	}
	return out
}

func stepPath(i int) string {
	return fmt.Sprintf("steps[%d]", i)
}
