// Package model defines the impact record submitted for an incident and the
// classification derived from it.
package model

import (
	"fmt"
	"time"
)

// HomesDamaged is the ordinal answer to "how many homes were damaged?".
type HomesDamaged string

const (
	HomesNone HomesDamaged = "none"
	HomesSome HomesDamaged = "some"
	HomesMany HomesDamaged = "many"
)

// ReleaseMedium identifies where a released substance ended up.
type ReleaseMedium string

const (
	MediumNone  ReleaseMedium = "none"
	MediumAir   ReleaseMedium = "air"
	MediumWater ReleaseMedium = "water"
	MediumSoil  ReleaseMedium = "soil"
)

// EnvironmentalImpact holds the six independent environmental magnitude answers.
// Areas are hectares, river length is kilometres.
type EnvironmentalImpact struct {
	ProtectedAreaHa float64 `json:"protected_area_ha" yaml:"protected_area_ha"`
	ExtendedAreaHa  float64 `json:"extended_area_ha" yaml:"extended_area_ha"`
	RiverKM         float64 `json:"river_km" yaml:"river_km"`
	LakeHa          float64 `json:"lake_ha" yaml:"lake_ha"`
	DeltaHa         float64 `json:"delta_ha" yaml:"delta_ha"`
	AquiferHa       float64 `json:"aquifer_ha" yaml:"aquifer_ha"`
}

// Release describes the nature of any substance release during the incident.
type Release struct {
	SubstanceCategory string        `json:"substance_category,omitempty" yaml:"substance_category,omitempty"`
	QuantityKG        float64       `json:"quantity_kg,omitempty" yaml:"quantity_kg,omitempty"`
	Medium            ReleaseMedium `json:"medium,omitempty" yaml:"medium,omitempty"`
	Contained         bool          `json:"contained,omitempty" yaml:"contained,omitempty"`
}

// ImpactRecord is the structured answer set describing one incident's
// consequences. It is immutable once handed to the classification engine;
// edits replace the whole record.
type ImpactRecord struct {
	Company      string    `json:"company" yaml:"company"`
	IncidentDate time.Time `json:"incident_date" yaml:"incident_date"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	Classifier   string    `json:"classifier,omitempty" yaml:"classifier,omitempty"`

	// Human harm.
	Deaths         int `json:"deaths" yaml:"deaths"`
	InjuredOnsite  int `json:"injured_onsite" yaml:"injured_onsite"`
	InjuredOffsite int `json:"injured_offsite" yaml:"injured_offsite"`

	// Property damage.
	HomesDamaged HomesDamaged `json:"homes_damaged" yaml:"homes_damaged"`

	// Evacuation.
	Evacuated       int     `json:"evacuated" yaml:"evacuated"`
	EvacuationHours float64 `json:"evacuation_hours" yaml:"evacuation_hours"`

	// Service disruption.
	ServiceAffected int     `json:"service_affected" yaml:"service_affected"`
	ServiceHours    float64 `json:"service_hours" yaml:"service_hours"`

	Environmental EnvironmentalImpact `json:"environmental" yaml:"environmental"`

	// Financial cost, same currency for both.
	CostOnsite  float64 `json:"cost_onsite" yaml:"cost_onsite"`
	CostOffsite float64 `json:"cost_offsite" yaml:"cost_offsite"`

	Transboundary bool `json:"transboundary" yaml:"transboundary"`

	Release Release `json:"release,omitempty" yaml:"release,omitempty"`

	// CreatedAt is set at intake and anchors the future-date check.
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// ValidationError reports an impact record field that violates its invariant.
// The engine raises it before any criterion is evaluated.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid impact record: %s %s", e.Field, e.Constraint)
}

// Validate checks the record's invariants: numeric fields non-negative,
// categorical fields in-enum, incident date not in the future relative to
// record creation. Returns the first violation found, in field order.
func (r *ImpactRecord) Validate() error {
	if r.Company == "" {
		return &ValidationError{Field: "company", Constraint: "must not be empty"}
	}
	if r.IncidentDate.IsZero() {
		return &ValidationError{Field: "incident_date", Constraint: "must be set"}
	}
	ref := r.CreatedAt
	if ref.IsZero() {
		ref = time.Now().UTC()
	}
	if r.IncidentDate.After(ref) {
		return &ValidationError{Field: "incident_date", Constraint: "must not be in the future"}
	}

	counts := []struct {
		field string
		value int
	}{
		{"deaths", r.Deaths},
		{"injured_onsite", r.InjuredOnsite},
		{"injured_offsite", r.InjuredOffsite},
		{"evacuated", r.Evacuated},
		{"service_affected", r.ServiceAffected},
	}
	for _, c := range counts {
		if c.value < 0 {
			return &ValidationError{Field: c.field, Constraint: "must be >= 0"}
		}
	}

	magnitudes := []struct {
		field string
		value float64
	}{
		{"evacuation_hours", r.EvacuationHours},
		{"service_hours", r.ServiceHours},
		{"environmental.protected_area_ha", r.Environmental.ProtectedAreaHa},
		{"environmental.extended_area_ha", r.Environmental.ExtendedAreaHa},
		{"environmental.river_km", r.Environmental.RiverKM},
		{"environmental.lake_ha", r.Environmental.LakeHa},
		{"environmental.delta_ha", r.Environmental.DeltaHa},
		{"environmental.aquifer_ha", r.Environmental.AquiferHa},
		{"cost_onsite", r.CostOnsite},
		{"cost_offsite", r.CostOffsite},
		{"release.quantity_kg", r.Release.QuantityKG},
	}
	for _, m := range magnitudes {
		if m.value < 0 {
			return &ValidationError{Field: m.field, Constraint: "must be >= 0"}
		}
	}

	switch r.HomesDamaged {
	case HomesNone, HomesSome, HomesMany:
	case "":
		return &ValidationError{Field: "homes_damaged", Constraint: "must be one of none, some, many"}
	default:
		return &ValidationError{Field: "homes_damaged", Constraint: fmt.Sprintf("unknown value %q", r.HomesDamaged)}
	}

	switch r.Release.Medium {
	case "", MediumNone, MediumAir, MediumWater, MediumSoil:
	default:
		return &ValidationError{Field: "release.medium", Constraint: fmt.Sprintf("unknown value %q", r.Release.Medium)}
	}

	return nil
}
