package rules

import (
	"fmt"

	"github.com/meridian-ehs/incidentctl/internal/model"
)

// Outcome is one criterion evaluator's verdict: the candidate tier for its
// dimension alone and whether the dimension independently crossed its
// mandatory-report threshold.
type Outcome struct {
	Dimension      Dimension
	Tier           Tier
	TriggersReport bool
	Reason         string
}

// evaluator scores one impact dimension. Evaluators are pure: no side
// effects, no dependency on any other evaluator's output.
type evaluator func(rec *model.ImpactRecord, rs *RuleSet) Outcome

// evaluators lists every criterion evaluator in priority order.
var evaluators = map[Dimension]evaluator{
	DimHuman:         evaluateHuman,
	DimEnvironmental: evaluateEnvironmental,
	DimEvacuation:    evaluateEvacuation,
	DimService:       evaluateService,
	DimProperty:      evaluateProperty,
	DimFinancial:     evaluateFinancial,
	DimRelease:       evaluateRelease,
	DimTransboundary: evaluateTransboundary,
}

// subValue is one sub-field of a multi-valued dimension, paired with its
// ladder. maxOutcome takes the maximum tier across sub-fields and sets the
// report trigger if any sub-field independently crosses its report rung.
type subValue struct {
	label  string
	value  float64
	ladder Ladder
	unit   string
}

func maxOutcome(dim Dimension, subs []subValue) Outcome {
	out := Outcome{Dimension: dim, Tier: TierMinor}
	for _, sv := range subs {
		step, ok := sv.ladder.Apply(sv.value)
		if !ok {
			continue
		}
		if step.Report {
			out.TriggersReport = true
		}
		if step.Tier > out.Tier || out.Reason == "" {
			out.Tier = step.Tier
			out.Reason = fmt.Sprintf("%s %s at or above the %s threshold",
				sv.label, formatValue(sv.value, sv.unit), formatValue(step.Threshold, sv.unit))
		}
	}
	return out
}

func formatValue(v float64, unit string) string {
	s := fmt.Sprintf("%g", v)
	if unit != "" {
		s += " " + unit
	}
	return s
}

func evaluateHuman(rec *model.ImpactRecord, rs *RuleSet) Outcome {
	return maxOutcome(DimHuman, []subValue{
		{"deaths", float64(rec.Deaths), rs.Human.Deaths, ""},
		{"persons injured on site", float64(rec.InjuredOnsite), rs.Human.InjuredOnsite, ""},
		{"persons injured off site", float64(rec.InjuredOffsite), rs.Human.InjuredOffsite, ""},
	})
}

func evaluateEnvironmental(rec *model.ImpactRecord, rs *RuleSet) Outcome {
	env := rec.Environmental
	return maxOutcome(DimEnvironmental, []subValue{
		{"protected area damaged", env.ProtectedAreaHa, rs.Environmental.ProtectedAreaHa, "ha"},
		{"extended area damaged", env.ExtendedAreaHa, rs.Environmental.ExtendedAreaHa, "ha"},
		{"river affected", env.RiverKM, rs.Environmental.RiverKM, "km"},
		{"lake affected", env.LakeHa, rs.Environmental.LakeHa, "ha"},
		{"delta affected", env.DeltaHa, rs.Environmental.DeltaHa, "ha"},
		{"aquifer affected", env.AquiferHa, rs.Environmental.AquiferHa, "ha"},
	})
}

func evaluateEvacuation(rec *model.ImpactRecord, rs *RuleSet) Outcome {
	personHours := float64(rec.Evacuated) * rec.EvacuationHours
	return maxOutcome(DimEvacuation, []subValue{
		{"persons evacuated", float64(rec.Evacuated), rs.Evacuation.People, ""},
		{"evacuation exposure", personHours, rs.Evacuation.PersonHours, "person-hours"},
	})
}

func evaluateService(rec *model.ImpactRecord, rs *RuleSet) Outcome {
	personHours := float64(rec.ServiceAffected) * rec.ServiceHours
	return maxOutcome(DimService, []subValue{
		{"persons without service", float64(rec.ServiceAffected), rs.Service.People, ""},
		{"service interruption", personHours, rs.Service.PersonHours, "person-hours"},
	})
}

func evaluateProperty(rec *model.ImpactRecord, rs *RuleSet) Outcome {
	out := Outcome{Dimension: DimProperty, Tier: TierMinor}
	rule, ok := rs.Property[rec.HomesDamaged]
	if !ok {
		return out
	}
	out.Tier = rule.Tier
	out.TriggersReport = rule.Report
	if rule.Tier > TierMinor || rule.Report {
		out.Reason = fmt.Sprintf("homes damaged answered %q", rec.HomesDamaged)
	}
	return out
}

func evaluateFinancial(rec *model.ImpactRecord, rs *RuleSet) Outcome {
	return maxOutcome(DimFinancial, []subValue{
		{"total cost", rec.CostOnsite + rec.CostOffsite, rs.Financial.Total, ""},
		{"off-site cost", rec.CostOffsite, rs.Financial.Offsite, ""},
	})
}

func evaluateRelease(rec *model.ImpactRecord, rs *RuleSet) Outcome {
	out := Outcome{Dimension: DimRelease, Tier: TierMinor}
	rel := rec.Release
	if rel.SubstanceCategory == "" {
		return out
	}
	ladder, ok := rs.Release[rel.SubstanceCategory]
	if !ok {
		// Unknown categories are rejected by the engine's validation gate
		// before evaluators run.
		return out
	}
	step, crossed := ladder.Apply(rel.QuantityKG)
	if !crossed {
		return out
	}
	out.Tier = step.Tier
	out.TriggersReport = step.Report
	out.Reason = fmt.Sprintf("%s release of %g kg at or above the %g kg threshold",
		rel.SubstanceCategory, rel.QuantityKG, step.Threshold)
	return out
}

func evaluateTransboundary(rec *model.ImpactRecord, rs *RuleSet) Outcome {
	out := Outcome{Dimension: DimTransboundary, Tier: TierMinor}
	if !rec.Transboundary {
		return out
	}
	out.Tier = rs.Transboundary.Tier
	out.TriggersReport = rs.Transboundary.Report
	out.Reason = "cross-border impact reported"
	return out
}
