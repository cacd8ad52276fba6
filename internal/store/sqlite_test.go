package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ehs/incidentctl/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "incidents.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRecord(company string) model.ImpactRecord {
	return model.ImpactRecord{
		Company:      company,
		IncidentDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		HomesDamaged: model.HomesNone,
		Deaths:       1,
	}
}

func testClassification() *model.Classification {
	return &model.Classification{
		Tier:           3,
		TierLabel:      "catastrophic",
		ReportRequired: true,
		Criterion:      "human_harm",
		Justification:  "deaths 1 >= 1",
		Breakdown: []model.CriterionOutcome{
			{Dimension: "human_harm", Tier: 3, TierLabel: "catastrophic", TriggersReport: true, Reason: "deaths 1 >= 1"},
		},
	}
}

func TestSQLiteIncidentRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	created, err := st.CreateIncident(ctx, testRecord("Acme Chemicals"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.Record.CreatedAt.IsZero(), "intake timestamp must be stamped on create")

	got, err := st.GetIncident(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Acme Chemicals", got.Record.Company)
	assert.Equal(t, 1, got.Record.Deaths)
	assert.Nil(t, got.Latest)
}

func TestSQLiteGetIncidentNotFound(t *testing.T) {
	st := newTestSQLite(t)

	_, err := st.GetIncident(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteUpdateIncident(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	created, err := st.CreateIncident(ctx, testRecord("Acme Chemicals"))
	require.NoError(t, err)

	rec := created.Record
	rec.Deaths = 0
	rec.InjuredOnsite = 4
	require.NoError(t, st.UpdateIncident(ctx, created.ID, rec))

	got, err := st.GetIncident(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Record.Deaths)
	assert.Equal(t, 4, got.Record.InjuredOnsite)
}

func TestSQLiteUpdateIncidentNotFound(t *testing.T) {
	st := newTestSQLite(t)

	err := st.UpdateIncident(context.Background(), "no-such-id", testRecord("Acme Chemicals"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteListIncidentsFilter(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	_, err := st.CreateIncident(ctx, testRecord("Acme Chemicals"))
	require.NoError(t, err)
	_, err = st.CreateIncident(ctx, testRecord("Borealis Refining"))
	require.NoError(t, err)
	_, err = st.CreateIncident(ctx, testRecord("Acme Chemicals"))
	require.NoError(t, err)

	all, err := st.ListIncidents(ctx, IncidentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	acme, err := st.ListIncidents(ctx, IncidentFilter{Company: "Acme Chemicals"})
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	limited, err := st.ListIncidents(ctx, IncidentFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteListIncidentsIncludesLatestClassification(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	classified, err := st.CreateIncident(ctx, testRecord("Acme Chemicals"))
	require.NoError(t, err)
	unclassified, err := st.CreateIncident(ctx, testRecord("Borealis Refining"))
	require.NoError(t, err)

	_, err = st.SaveClassification(ctx, classified.ID, testClassification())
	require.NoError(t, err)
	superseding := testClassification()
	superseding.Tier = 2
	superseding.TierLabel = "major"
	time.Sleep(10 * time.Millisecond)
	saved, err := st.SaveClassification(ctx, classified.ID, superseding)
	require.NoError(t, err)

	incidents, err := st.ListIncidents(ctx, IncidentFilter{})
	require.NoError(t, err)
	require.Len(t, incidents, 2)

	byID := map[string]model.Incident{}
	for _, inc := range incidents {
		byID[inc.ID] = inc
	}

	require.NotNil(t, byID[classified.ID].Latest)
	assert.Equal(t, saved.ID, byID[classified.ID].Latest.ID, "join picks the newest classification")
	assert.Equal(t, "major", byID[classified.ID].Latest.TierLabel)
	require.Len(t, byID[classified.ID].Latest.Breakdown, 1)
	assert.Nil(t, byID[unclassified.ID].Latest)
}

func TestSQLiteClassificationHistory(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	created, err := st.CreateIncident(ctx, testRecord("Acme Chemicals"))
	require.NoError(t, err)

	latest, err := st.LatestClassification(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, latest, "unclassified incident has no latest classification")

	first, err := st.SaveClassification(ctx, created.ID, testClassification())
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, created.ID, first.IncidentID)
	assert.False(t, first.ClassifiedAt.IsZero())

	// A reclassification supersedes but never replaces history.
	second := testClassification()
	second.Tier = 2
	second.TierLabel = "major"
	time.Sleep(10 * time.Millisecond)
	saved, err := st.SaveClassification(ctx, created.ID, second)
	require.NoError(t, err)

	latest, err = st.LatestClassification(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, saved.ID, latest.ID)
	assert.Equal(t, "major", latest.TierLabel)
	require.Len(t, latest.Breakdown, 1)
	assert.Equal(t, "human_harm", latest.Breakdown[0].Dimension)

	history, err := st.ListClassifications(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, saved.ID, history[0].ID, "history is newest first")
}

func TestSQLiteSummary(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	a, err := st.CreateIncident(ctx, testRecord("Acme Chemicals"))
	require.NoError(t, err)
	b, err := st.CreateIncident(ctx, testRecord("Borealis Refining"))
	require.NoError(t, err)
	_, err = st.CreateIncident(ctx, testRecord("Cinder Works"))
	require.NoError(t, err)

	_, err = st.SaveClassification(ctx, a.ID, testClassification())
	require.NoError(t, err)

	// b gets reclassified; only the latest result must count.
	_, err = st.SaveClassification(ctx, b.ID, testClassification())
	require.NoError(t, err)
	moderate := &model.Classification{Tier: 1, TierLabel: "moderate", Criterion: "none", Justification: "no criterion threshold met"}
	time.Sleep(10 * time.Millisecond)
	_, err = st.SaveClassification(ctx, b.ID, moderate)
	require.NoError(t, err)

	summary, err := st.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Incidents)
	assert.Equal(t, 2, summary.Classified)
	assert.Equal(t, 1, summary.ByTier["catastrophic"])
	assert.Equal(t, 1, summary.ByTier["moderate"])
	assert.Equal(t, 1, summary.ReportRequired)
}
