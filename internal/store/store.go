// Package store persists impact records and the classifications derived from
// them. Two backends exist: SQLite for local use and Postgres for deployments.
package store

import (
	"context"

	"github.com/meridian-ehs/incidentctl/internal/model"
)

// IncidentFilter specifies criteria for listing incidents.
type IncidentFilter struct {
	Company string `json:"company,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for incident intake.
type Store interface {
	// Incidents
	CreateIncident(ctx context.Context, rec model.ImpactRecord) (*model.Incident, error)
	UpdateIncident(ctx context.Context, id string, rec model.ImpactRecord) error
	GetIncident(ctx context.Context, id string) (*model.Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]model.Incident, error)

	// Classifications
	SaveClassification(ctx context.Context, incidentID string, c *model.Classification) (*model.Classification, error)
	LatestClassification(ctx context.Context, incidentID string) (*model.Classification, error)
	ListClassifications(ctx context.Context, incidentID string) ([]model.Classification, error)

	// Dashboard
	Summary(ctx context.Context) (*model.DashboardSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
