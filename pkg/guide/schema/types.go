// Package schema defines the guide/v1 document types: guides, their steps
// and exam plans.
package schema

// API version constant for guide documents.
const APIVersionGuide = "guide/v1"

// APIVersionPlan is the API version of exam plan documents.
const APIVersionPlan = "plan/v1"

// ---------------------------------------------------------------------------
// Guide
// ---------------------------------------------------------------------------

// Guide is a guide/v1 document: an ordered list of steps under one id.
// Guides loaded into a registry are templates and are never mutated.
type Guide struct {
	APIVersion string    `yaml:"apiVersion" json:"apiVersion" toml:"apiVersion" jsonschema:"enum=guide/v1"`
	Meta       GuideMeta `yaml:"guide"      json:"guide"      toml:"guide"`
	Steps      []Step    `yaml:"steps"      json:"steps"      toml:"steps"      jsonschema:"minItems=1"`
}

// GuideMeta carries the guide identifier and free text.
type GuideMeta struct {
	ID      string `yaml:"id"                json:"id"                toml:"id" jsonschema:"minLength=1"`
	Title   string `yaml:"title,omitempty"   json:"title,omitempty"   toml:"title,omitempty"`
	Summary string `yaml:"summary,omitempty" json:"summary,omitempty" toml:"summary,omitempty"`
}

// ID returns the guide identifier.
func (g *Guide) ID() string {
	return g.Meta.ID
}

// StepIndex returns the index of the step with the given id, or -1.
func (g *Guide) StepIndex(id string) int {
	for i := range g.Steps {
		if g.Steps[i].ID == id {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Step
// ---------------------------------------------------------------------------

// Step is one unit of guided work. Completed is runtime state owned by the
// sequencer and is never read from documents.
type Step struct {
	ID          string `yaml:"id"                    json:"id"                    toml:"id" jsonschema:"minLength=1"`
	Title       string `yaml:"title,omitempty"       json:"title,omitempty"       toml:"title,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty" toml:"description,omitempty"`

	// Highlight names a scene object to emphasise. Passed through untouched.
	Highlight string `yaml:"highlight,omitempty" json:"highlight,omitempty" toml:"highlight,omitempty"`

	// Previous is advisory metadata naming the step expected to be done first.
	// Ordering is enforced by index, not by this field.
	Previous string `yaml:"previous,omitempty" json:"previous,omitempty" toml:"previous,omitempty"`

	Completed bool `yaml:"-" json:"-" toml:"-"`
}

// ---------------------------------------------------------------------------
// Exam plan
// ---------------------------------------------------------------------------

// SectionKind enumerates exam plan section kinds.
type SectionKind string

const (
	SectionQuiz       SectionKind = "quiz"
	SectionExperiment SectionKind = "experiment"
)

// Plan is a plan/v1 document describing a timed exam session.
type Plan struct {
	APIVersion string    `yaml:"apiVersion" json:"apiVersion"`
	Meta       PlanMeta  `yaml:"plan"       json:"plan"`
	Sections   []Section `yaml:"sections"   json:"sections"`
}

// PlanMeta carries plan identity and the overall time limit.
type PlanMeta struct {
	ID        string `yaml:"id"                   json:"id"`
	Title     string `yaml:"title,omitempty"      json:"title,omitempty"`
	TimeLimit string `yaml:"time_limit,omitempty" json:"time_limit,omitempty"` // Go duration, empty = unlimited
	PassRule  string `yaml:"pass_rule,omitempty"  json:"pass_rule,omitempty"`
}

// Section is one part of an exam plan.
type Section struct {
	ID    string      `yaml:"id"              json:"id"`
	Kind  SectionKind `yaml:"kind"            json:"kind"`
	Title string      `yaml:"title,omitempty" json:"title,omitempty"`
	Guide string      `yaml:"guide,omitempty" json:"guide,omitempty"` // experiment sections only
}
