package validate

import (
	"fmt"
	"time"

	"github.com/ormasoftchile/labguide/pkg/guide/schema"
)

// validateDomain applies the hand-coded guide rules.
func validateDomain(g *schema.Guide) []*ValidationError {
	var errs []*ValidationError

	if g.APIVersion != schema.APIVersionGuide {
		errs = append(errs, errorf("domain", "apiVersion", "unrecognized apiVersion %q, expected %q", g.APIVersion, schema.APIVersionGuide))
	}

	seen := make(map[string]int, len(g.Steps))
	for i, step := range g.Steps {
		path := stepPath(i)
		if step.ID == "" {
			errs = append(errs, errorf("domain", path+".id", "step id is required"))
			continue
		}
		if first, dup := seen[step.ID]; dup {
			errs = append(errs, errorf("domain", path+".id", "duplicate step ID %q (first at %s)", step.ID, stepPath(first)))
			continue
		}
		seen[step.ID] = i
		if step.Title == "" {
			errs = append(errs, warningf("domain", path+".title", "step %q has no title to narrate", step.ID))
		}
	}

	// previous is advisory: it must point backwards, ideally to the adjacent step.
	for i, step := range g.Steps {
		if step.Previous == "" {
			continue
		}
		path := stepPath(i) + ".previous"
		at, ok := seen[step.Previous]
		switch {
		case !ok:
			errs = append(errs, errorf("domain", path, "previous step %q not found", step.Previous))
		case at >= i:
			errs = append(errs, errorf("domain", path, "previous step %q must come before %q", step.Previous, step.ID))
		case at != i-1:
			errs = append(errs, warningf("domain", path, "previous step %q is not adjacent; ordering is enforced by position", step.Previous))
		}
	}

	return errs
}

// validatePlanDomain checks plan sections and their guide references.
func validatePlanDomain(p *schema.Plan, lookup func(id string) bool) []*ValidationError {
	var errs []*ValidationError

	if p.APIVersion != schema.APIVersionPlan {
		errs = append(errs, errorf("domain", "apiVersion", "unrecognized apiVersion %q, expected %q", p.APIVersion, schema.APIVersionPlan))
	}
	if p.Meta.ID == "" {
		errs = append(errs, errorf("domain", "plan.id", "plan id is required"))
	}
	if p.Meta.TimeLimit != "" {
		if d, err := time.ParseDuration(p.Meta.TimeLimit); err != nil || d <= 0 {
			errs = append(errs, errorf("domain", "plan.time_limit", "invalid time limit %q", p.Meta.TimeLimit))
		}
	}
	if len(p.Sections) == 0 {
		errs = append(errs, errorf("domain", "sections", "at least one section is required"))
	}

	seen := make(map[string]bool, len(p.Sections))
	for i, sec := range p.Sections {
		path := fmt.Sprintf("sections[%d]", i)
		if sec.ID == "" {
			errs = append(errs, errorf("domain", path+".id", "section id is required"))
		} else if seen[sec.ID] {
			errs = append(errs, errorf("domain", path+".id", "duplicate section ID %q", sec.ID))
		}
		seen[sec.ID] = true

		switch sec.Kind {
		case schema.SectionQuiz:
			if sec.Guide != "" {
				errs = append(errs, warningf("domain", path+".guide", "quiz section ignores guide %q", sec.Guide))
			}
		case schema.SectionExperiment:
			if sec.Guide == "" {
				errs = append(errs, errorf("domain", path+".guide", "experiment section requires a guide"))
			} else if lookup != nil && !lookup(sec.Guide) {
				errs = append(errs, errorf("domain", path+".guide", "guide %q not found", sec.Guide))
			}
		default:
			errs = append(errs, errorf("domain", path+".kind", "invalid section kind %q: must be quiz or experiment", sec.Kind))
		}
	}
	return errs
}
