// Package rules implements the incident classification engine: per-dimension
// criterion evaluators over a configurable regulatory rule table, and a
// resolver that combines their outcomes into one severity tier and one
// mandatory-report flag.
package rules

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/meridian-ehs/incidentctl/internal/model"
)

// Tier is an index into RuleSet.TierLabels, ascending in severity. Tier 0 is
// the no-escalation floor every evaluator defaults to.
type Tier int

// Dimension names one impact dimension scored by its own evaluator.
type Dimension string

const (
	DimHuman         Dimension = "human_harm"
	DimEnvironmental Dimension = "environmental"
	DimEvacuation    Dimension = "evacuation"
	DimService       Dimension = "service_disruption"
	DimProperty      Dimension = "property_damage"
	DimFinancial     Dimension = "financial_cost"
	DimRelease       Dimension = "release"
	DimTransboundary Dimension = "transboundary"

	// DimNone marks a classification where no criterion crossed a threshold.
	DimNone Dimension = "none"
)

// priorityOrder is the fixed tie-break order over dimensions: when two
// evaluators land on the same tier, the earlier dimension supplies the
// justification. Human harm always outranks everything else.
var priorityOrder = []Dimension{
	DimHuman,
	DimEnvironmental,
	DimEvacuation,
	DimService,
	DimProperty,
	DimFinancial,
	DimRelease,
	DimTransboundary,
}

// Step is one rung of a threshold ladder. A value at or above Threshold
// (inclusive, per the regulation's wording) escalates to Tier; Report marks
// the rung as a mandatory-report trigger.
type Step struct {
	Threshold float64 `yaml:"threshold"`
	Tier      Tier    `yaml:"tier"`
	Report    bool    `yaml:"report"`
}

// Ladder is an ascending set of steps. Apply returns the highest rung whose
// threshold the value meets or exceeds, defaulting to tier 0 with no trigger.
type Ladder []Step

// Apply walks the ladder and returns the escalation for v: the tier of the
// highest rung crossed, with the report flag OR'd across every crossed rung
// so a trigger never un-fires as the value grows. ok is false when no rung
// was crossed.
func (l Ladder) Apply(v float64) (Step, bool) {
	var matched Step
	var ok bool
	for _, s := range l {
		if v < s.Threshold {
			continue
		}
		report := matched.Report || s.Report
		matched = s
		matched.Report = report
		ok = true
	}
	return matched, ok
}

// CategoricalRule maps one enumerated answer directly to a tier and report
// flag, with no numeric comparison.
type CategoricalRule struct {
	Tier   Tier `yaml:"tier"`
	Report bool `yaml:"report"`
}

// HumanRules holds the ladders for the human harm dimension.
type HumanRules struct {
	Deaths         Ladder `yaml:"deaths"`
	InjuredOnsite  Ladder `yaml:"injured_onsite"`
	InjuredOffsite Ladder `yaml:"injured_offsite"`
}

// ExposureRules holds the ladders for dimensions measured as a head count
// plus a duration (evacuation, service disruption). PersonHours is applied
// to count x duration.
type ExposureRules struct {
	People      Ladder `yaml:"people"`
	PersonHours Ladder `yaml:"person_hours"`
}

// EnvironmentalRules holds one ladder per environmental magnitude field.
type EnvironmentalRules struct {
	ProtectedAreaHa Ladder `yaml:"protected_area_ha"`
	ExtendedAreaHa  Ladder `yaml:"extended_area_ha"`
	RiverKM         Ladder `yaml:"river_km"`
	LakeHa          Ladder `yaml:"lake_ha"`
	DeltaHa         Ladder `yaml:"delta_ha"`
	AquiferHa       Ladder `yaml:"aquifer_ha"`
}

// FinancialRules holds the cost ladders. Total is applied to onsite + offsite;
// Offsite is applied to offsite cost alone, which the regulation treats more
// strictly.
type FinancialRules struct {
	Total   Ladder `yaml:"total"`
	Offsite Ladder `yaml:"offsite"`
}

// RuleSet is the complete regulatory rule table. Every numeric cutoff and the
// tier label scale are configuration data, loadable from a YAML rules file;
// DefaultRuleSet supplies the built-in table.
type RuleSet struct {
	TierLabels    []string                               `yaml:"tier_labels"`
	Human         HumanRules                             `yaml:"human"`
	Property      map[model.HomesDamaged]CategoricalRule `yaml:"property"`
	Evacuation    ExposureRules                          `yaml:"evacuation"`
	Service       ExposureRules                          `yaml:"service"`
	Environmental EnvironmentalRules                     `yaml:"environmental"`
	Financial     FinancialRules                         `yaml:"financial"`
	Transboundary CategoricalRule                        `yaml:"transboundary"`
	Release       map[string]Ladder                      `yaml:"release"`
}

// Label returns the configured label for a tier, clamped to the scale.
func (rs *RuleSet) Label(t Tier) string {
	if t < 0 || int(t) >= len(rs.TierLabels) {
		return fmt.Sprintf("tier_%d", t)
	}
	return rs.TierLabels[t]
}

// TopTier returns the highest tier on the configured scale.
func (rs *RuleSet) TopTier() Tier {
	return Tier(len(rs.TierLabels) - 1)
}

// ReleaseCategories returns the configured substance categories, sorted.
func (rs *RuleSet) ReleaseCategories() []string {
	cats := make([]string, 0, len(rs.Release))
	for c := range rs.Release {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// LoadFile reads a YAML rules file over the default rule table. Sections
// present in the file replace their defaults wholesale; absent sections keep
// the built-in values.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}
	rs := DefaultRuleSet()
	if err := yaml.Unmarshal(data, rs); err != nil {
		return nil, eris.Wrapf(err, "rules: parse %s", path)
	}
	if err := rs.Validate(); err != nil {
		return nil, eris.Wrapf(err, "rules: %s", path)
	}
	return rs, nil
}

// Validate checks that the rule table is internally consistent: at least two
// tier labels, every ladder ascending in both threshold and tier, every tier
// on the configured scale.
func (rs *RuleSet) Validate() error {
	var errs []string

	if len(rs.TierLabels) < 2 {
		errs = append(errs, "tier_labels must list at least two tiers")
	}

	for name, l := range rs.ladders() {
		errs = append(errs, rs.validateLadder(name, l)...)
	}

	for homes := range rs.Property {
		switch homes {
		case model.HomesNone, model.HomesSome, model.HomesMany:
		default:
			errs = append(errs, fmt.Sprintf("property: unknown homes_damaged value %q", homes))
		}
	}
	for homes, rule := range rs.Property {
		if !rs.tierInRange(rule.Tier) {
			errs = append(errs, fmt.Sprintf("property.%s: tier %d out of range", homes, rule.Tier))
		}
	}
	if !rs.tierInRange(rs.Transboundary.Tier) {
		errs = append(errs, fmt.Sprintf("transboundary: tier %d out of range", rs.Transboundary.Tier))
	}

	if len(errs) > 0 {
		return eris.Errorf("rule table validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ladders returns every ladder in the table keyed by its config path.
func (rs *RuleSet) ladders() map[string]Ladder {
	m := map[string]Ladder{
		"human.deaths":                      rs.Human.Deaths,
		"human.injured_onsite":              rs.Human.InjuredOnsite,
		"human.injured_offsite":             rs.Human.InjuredOffsite,
		"evacuation.people":                 rs.Evacuation.People,
		"evacuation.person_hours":           rs.Evacuation.PersonHours,
		"service.people":                    rs.Service.People,
		"service.person_hours":              rs.Service.PersonHours,
		"environmental.protected_area_ha":   rs.Environmental.ProtectedAreaHa,
		"environmental.extended_area_ha":    rs.Environmental.ExtendedAreaHa,
		"environmental.river_km":            rs.Environmental.RiverKM,
		"environmental.lake_ha":             rs.Environmental.LakeHa,
		"environmental.delta_ha":            rs.Environmental.DeltaHa,
		"environmental.aquifer_ha":          rs.Environmental.AquiferHa,
		"financial.total":                   rs.Financial.Total,
		"financial.offsite":                 rs.Financial.Offsite,
	}
	for cat, l := range rs.Release {
		m["release."+cat] = l
	}
	return m
}

func (rs *RuleSet) validateLadder(name string, l Ladder) []string {
	var errs []string
	for i, s := range l {
		if s.Threshold < 0 {
			errs = append(errs, fmt.Sprintf("%s[%d]: threshold must be >= 0", name, i))
		}
		if !rs.tierInRange(s.Tier) {
			errs = append(errs, fmt.Sprintf("%s[%d]: tier %d out of range", name, i, s.Tier))
		}
		if i > 0 {
			if s.Threshold <= l[i-1].Threshold {
				errs = append(errs, fmt.Sprintf("%s[%d]: thresholds must be strictly ascending", name, i))
			}
			if s.Tier < l[i-1].Tier {
				errs = append(errs, fmt.Sprintf("%s[%d]: tiers must be non-decreasing", name, i))
			}
		}
	}
	return errs
}

func (rs *RuleSet) tierInRange(t Tier) bool {
	return t >= 0 && int(t) < len(rs.TierLabels)
}
