package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/meridian-ehs/incidentctl/internal/model"
)

func exportFixture() []model.Incident {
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	return []model.Incident{
		{
			ID: "inc-1",
			Record: model.ImpactRecord{
				Company:      "Acme Chemicals",
				IncidentDate: date,
				Deaths:       1,
				HomesDamaged: model.HomesNone,
			},
			Latest: &model.Classification{
				Tier:           3,
				TierLabel:      "catastrophic",
				ReportRequired: true,
				Criterion:      "human_harm",
				Justification:  "deaths 1 >= 1",
				ClassifiedAt:   time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC),
			},
		},
		{
			ID: "inc-2",
			Record: model.ImpactRecord{
				Company:      "Borealis Refining",
				IncidentDate: date,
				HomesDamaged: model.HomesNone,
			},
			// Not yet classified.
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, exportFixture()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{
		"inc-1", "Acme Chemicals", "2026-03-14", "3", "catastrophic",
		"true", "human_harm", "deaths 1 >= 1", "2026-03-15 09:30:00",
	}, records[1])

	// Unclassified incidents export with empty classification columns.
	assert.Equal(t, "inc-2", records[2][0])
	assert.Equal(t, "", records[2][3])
	assert.Equal(t, "", records[2][4])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1, "header only")
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classifications.xlsx")
	require.NoError(t, WriteXLSX(path, exportFixture()))

	_, err := os.Stat(path)
	require.NoError(t, err)

	wb, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)

	sheet := wb.Sheets[0]
	assert.Equal(t, "Classifications", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "incident_id", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "catastrophic", sheet.Rows[1].Cells[4].String())
}
