package model

import "time"

// CriterionOutcome is the verdict of a single criterion evaluator, kept on the
// classification for auditability.
type CriterionOutcome struct {
	Dimension      string `json:"dimension"`
	Tier           int    `json:"tier"`
	TierLabel      string `json:"tier_label"`
	TriggersReport bool   `json:"triggers_report"`
	Reason         string `json:"reason,omitempty"`
}

// Classification is the engine's output for one impact record: the severity
// tier, whether the incident must be reported within 24 hours, and the
// criterion that decided it. Recomputed fresh on every request, never
// incrementally maintained.
type Classification struct {
	ID             string             `json:"id,omitempty"`
	IncidentID     string             `json:"incident_id,omitempty"`
	Tier           int                `json:"tier"`
	TierLabel      string             `json:"tier_label"`
	ReportRequired bool               `json:"report_required"`
	Criterion      string             `json:"criterion"`
	Justification  string             `json:"justification"`
	Breakdown      []CriterionOutcome `json:"breakdown,omitempty"`
	ClassifiedAt   time.Time          `json:"classified_at,omitempty"`
}

// Incident is a stored impact record with its persistence envelope.
type Incident struct {
	ID        string          `json:"id"`
	Record    ImpactRecord    `json:"record"`
	Latest    *Classification `json:"latest_classification,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DashboardSummary aggregates stored classifications for the summary view.
type DashboardSummary struct {
	Incidents      int            `json:"incidents"`
	Classified     int            `json:"classified"`
	ByTier         map[string]int `json:"by_tier"`
	ReportRequired int            `json:"report_required"`
}
