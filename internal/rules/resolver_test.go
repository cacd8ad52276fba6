package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveMaxTierWins(t *testing.T) {
	outcomes := map[Dimension]Outcome{
		DimHuman:     {Dimension: DimHuman, Tier: TierModerate, Reason: "human"},
		DimFinancial: {Dimension: DimFinancial, Tier: TierMajor, Reason: "financial"},
	}

	final, report := resolve(outcomes)
	assert.Equal(t, TierMajor, final.Tier)
	assert.Equal(t, DimFinancial, final.Dimension)
	assert.Equal(t, "financial", final.Reason)
	assert.False(t, report)
}

func TestResolveTieBreakFollowsPriorityOrder(t *testing.T) {
	// Environmental outranks financial when both land on the same tier, so
	// the justification must come from the environmental evaluator.
	outcomes := map[Dimension]Outcome{
		DimFinancial:     {Dimension: DimFinancial, Tier: TierMajor, Reason: "financial"},
		DimEnvironmental: {Dimension: DimEnvironmental, Tier: TierMajor, Reason: "environmental"},
	}

	final, _ := resolve(outcomes)
	assert.Equal(t, DimEnvironmental, final.Dimension)
	assert.Equal(t, "environmental", final.Reason)
}

func TestResolveHumanHarmOutranksEverything(t *testing.T) {
	outcomes := make(map[Dimension]Outcome, len(priorityOrder))
	for _, dim := range priorityOrder {
		outcomes[dim] = Outcome{Dimension: dim, Tier: TierMajor, Reason: string(dim)}
	}

	final, _ := resolve(outcomes)
	assert.Equal(t, DimHuman, final.Dimension)
}

func TestResolveReportIsORAcrossOutcomes(t *testing.T) {
	// A low-tier trigger forces reporting even when another dimension sets a
	// higher tier without one.
	outcomes := map[Dimension]Outcome{
		DimEnvironmental: {Dimension: DimEnvironmental, Tier: TierMajor, Reason: "environmental"},
		DimTransboundary: {Dimension: DimTransboundary, Tier: TierMinor, TriggersReport: true, Reason: "cross-border"},
	}

	final, report := resolve(outcomes)
	assert.Equal(t, DimEnvironmental, final.Dimension)
	assert.True(t, report)
}

func TestResolveTriggerAtFloorTierSuppliesJustification(t *testing.T) {
	// When nothing escalates the tier, a report-triggering dimension still
	// names itself instead of the no-criterion fallback.
	outcomes := map[Dimension]Outcome{
		DimHuman:         {Dimension: DimHuman, Tier: TierMinor},
		DimTransboundary: {Dimension: DimTransboundary, Tier: TierMinor, TriggersReport: true, Reason: "cross-border"},
	}

	final, report := resolve(outcomes)
	assert.Equal(t, TierMinor, final.Tier)
	assert.Equal(t, DimTransboundary, final.Dimension)
	assert.Equal(t, "cross-border", final.Reason)
	assert.True(t, report)
}

func TestResolveNothingCrossed(t *testing.T) {
	outcomes := map[Dimension]Outcome{
		DimHuman:     {Dimension: DimHuman, Tier: TierMinor},
		DimFinancial: {Dimension: DimFinancial, Tier: TierMinor},
	}

	final, report := resolve(outcomes)
	assert.Equal(t, TierMinor, final.Tier)
	assert.Equal(t, DimNone, final.Dimension)
	assert.Equal(t, "no criterion threshold met", final.Reason)
	assert.False(t, report)
}
