package rules

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/meridian-ehs/incidentctl/internal/model"
)

// Engine is the classification entry point. It is stateless: the full
// decision is recomputed from the record and the rule table on every call,
// so concurrent use needs no coordination.
type Engine struct {
	rules *RuleSet
}

// NewEngine builds an engine over a validated rule table.
func NewEngine(rs *RuleSet) (*Engine, error) {
	if rs == nil {
		rs = DefaultRuleSet()
	}
	if err := rs.Validate(); err != nil {
		return nil, eris.Wrap(err, "engine")
	}
	return &Engine{rules: rs}, nil
}

// Rules returns the engine's rule table.
func (e *Engine) Rules() *RuleSet {
	return e.rules
}

// Classify validates the record, runs every criterion evaluator, and resolves
// their outcomes into one classification. A record violating its invariants
// fails with *model.ValidationError before any evaluator runs; a validated
// record cannot fail.
func (e *Engine) Classify(rec *model.ImpactRecord) (*model.Classification, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if cat := rec.Release.SubstanceCategory; cat != "" {
		if _, ok := e.rules.Release[cat]; !ok {
			return nil, &model.ValidationError{
				Field: "release.substance_category",
				Constraint: fmt.Sprintf("unknown value %q, expected one of %s",
					cat, strings.Join(e.rules.ReleaseCategories(), ", ")),
			}
		}
	}

	outcomes := make(map[Dimension]Outcome, len(evaluators))
	for dim, eval := range evaluators {
		outcomes[dim] = eval(rec, e.rules)
	}

	final, report := resolve(outcomes)

	c := &model.Classification{
		Tier:           int(final.Tier),
		TierLabel:      e.rules.Label(final.Tier),
		ReportRequired: report,
		Criterion:      string(final.Dimension),
		Justification:  final.Reason,
		Breakdown:      e.breakdown(outcomes),
	}
	return c, nil
}

// breakdown renders per-criterion outcomes in priority order for audit trails.
func (e *Engine) breakdown(outcomes map[Dimension]Outcome) []model.CriterionOutcome {
	bd := make([]model.CriterionOutcome, 0, len(outcomes))
	for _, dim := range priorityOrder {
		out, ok := outcomes[dim]
		if !ok {
			continue
		}
		bd = append(bd, model.CriterionOutcome{
			Dimension:      string(out.Dimension),
			Tier:           int(out.Tier),
			TierLabel:      e.rules.Label(out.Tier),
			TriggersReport: out.TriggersReport,
			Reason:         out.Reason,
		})
	}
	return bd
}
