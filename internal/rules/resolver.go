package rules

// resolve combines all evaluator outcomes into the final verdict.
//
// The final tier is the maximum across outcomes. Ties are broken by the fixed
// dimension priority order, so the justification is reproducible for
// identical input. The report flag is the OR across all triggers: any single
// dimension crossing its mandatory threshold forces reporting regardless of
// the tier the other dimensions produce.
func resolve(outcomes map[Dimension]Outcome) (final Outcome, report bool) {
	final = Outcome{Tier: TierMinor}
	picked := false
	for _, dim := range priorityOrder {
		out, ok := outcomes[dim]
		if !ok {
			continue
		}
		if out.TriggersReport {
			report = true
		}
		if !picked || out.Tier > final.Tier ||
			(out.Tier == final.Tier && final.Reason == "" && out.Reason != "") {
			final = out
			picked = true
		}
	}
	if final.Reason == "" {
		// Default path: nothing crossed, lowest tier, no triggering criterion.
		final.Dimension = DimNone
		final.Reason = "no criterion threshold met"
	}
	return final, report
}
