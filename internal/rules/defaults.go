package rules

import "github.com/meridian-ehs/incidentctl/internal/model"

// Severity tiers on the default scale.
const (
	TierMinor Tier = iota
	TierModerate
	TierMajor
	TierCatastrophic
)

// DefaultRuleSet returns the built-in rule table. Cutoffs follow the
// major-accident reporting annex the intake form is modeled on: any fatality
// tops the scale, single off-site hospitalisations and 500+ person-hour
// evacuations are reportable, and environmental damage reports at small
// absolute magnitudes when protected habitats are involved.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		TierLabels: []string{"minor", "moderate", "major", "catastrophic"},

		Human: HumanRules{
			Deaths: Ladder{
				{Threshold: 1, Tier: TierCatastrophic, Report: true},
			},
			InjuredOnsite: Ladder{
				{Threshold: 1, Tier: TierModerate},
				{Threshold: 6, Tier: TierMajor, Report: true},
			},
			InjuredOffsite: Ladder{
				{Threshold: 1, Tier: TierMajor, Report: true},
			},
		},

		Property: map[model.HomesDamaged]CategoricalRule{
			model.HomesNone: {Tier: TierMinor},
			model.HomesSome: {Tier: TierModerate},
			model.HomesMany: {Tier: TierMajor, Report: true},
		},

		Evacuation: ExposureRules{
			People: Ladder{
				{Threshold: 10, Tier: TierModerate},
				{Threshold: 100, Tier: TierMajor, Report: true},
			},
			PersonHours: Ladder{
				{Threshold: 500, Tier: TierMajor, Report: true},
			},
		},

		Service: ExposureRules{
			People: Ladder{
				{Threshold: 50, Tier: TierModerate},
				{Threshold: 2000, Tier: TierMajor, Report: true},
			},
			PersonHours: Ladder{
				{Threshold: 1000, Tier: TierMajor, Report: true},
			},
		},

		Environmental: EnvironmentalRules{
			ProtectedAreaHa: Ladder{
				{Threshold: 0.1, Tier: TierModerate},
				{Threshold: 0.5, Tier: TierMajor, Report: true},
			},
			ExtendedAreaHa: Ladder{
				{Threshold: 2, Tier: TierModerate},
				{Threshold: 10, Tier: TierMajor, Report: true},
			},
			RiverKM: Ladder{
				{Threshold: 2, Tier: TierModerate},
				{Threshold: 10, Tier: TierMajor, Report: true},
			},
			LakeHa: Ladder{
				{Threshold: 0.2, Tier: TierModerate},
				{Threshold: 1, Tier: TierMajor, Report: true},
			},
			DeltaHa: Ladder{
				{Threshold: 0.5, Tier: TierModerate},
				{Threshold: 2, Tier: TierMajor, Report: true},
			},
			AquiferHa: Ladder{
				{Threshold: 0.2, Tier: TierModerate},
				{Threshold: 1, Tier: TierMajor, Report: true},
			},
		},

		Financial: FinancialRules{
			Total: Ladder{
				{Threshold: 100_000, Tier: TierModerate},
				{Threshold: 2_000_000, Tier: TierMajor, Report: true},
			},
			Offsite: Ladder{
				{Threshold: 50_000, Tier: TierModerate},
				{Threshold: 500_000, Tier: TierMajor, Report: true},
			},
		},

		// A cross-border effect is reportable on its own, whatever tier the
		// other dimensions produce.
		Transboundary: CategoricalRule{Tier: TierMinor, Report: true},

		Release: map[string]Ladder{
			"toxic": {
				{Threshold: 100, Tier: TierModerate},
				{Threshold: 1_000, Tier: TierMajor, Report: true},
			},
			"flammable": {
				{Threshold: 1_000, Tier: TierModerate},
				{Threshold: 10_000, Tier: TierMajor, Report: true},
			},
			"oxidising": {
				{Threshold: 500, Tier: TierModerate},
				{Threshold: 5_000, Tier: TierMajor, Report: true},
			},
			"corrosive": {
				{Threshold: 1_000, Tier: TierModerate},
				{Threshold: 10_000, Tier: TierMajor, Report: true},
			},
		},
	}
}
