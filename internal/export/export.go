// Package export writes stored incidents and their classifications to CSV or
// XLSX files for compliance hand-off.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/meridian-ehs/incidentctl/internal/model"
)

var header = []string{
	"incident_id", "company", "incident_date", "tier", "tier_label",
	"report_required", "criterion", "justification", "classified_at",
}

// row flattens one incident + latest classification into export columns.
func row(inc *model.Incident) []string {
	r := []string{
		inc.ID,
		inc.Record.Company,
		inc.Record.IncidentDate.Format("2006-01-02"),
		"", "", "", "", "", "",
	}
	if c := inc.Latest; c != nil {
		r[3] = strconv.Itoa(c.Tier)
		r[4] = c.TierLabel
		r[5] = strconv.FormatBool(c.ReportRequired)
		r[6] = c.Criterion
		r[7] = c.Justification
		r[8] = c.ClassifiedAt.UTC().Format("2006-01-02 15:04:05")
	}
	return r
}

// WriteCSV writes incidents with their latest classifications as CSV.
func WriteCSV(w io.Writer, incidents []model.Incident) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for i := range incidents {
		if err := cw.Write(row(&incidents[i])); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes incidents with their latest classifications as a
// single-sheet spreadsheet.
func WriteXLSX(path string, incidents []model.Incident) error {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Classifications")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}

	for i := range incidents {
		xr := sheet.AddRow()
		for _, v := range row(&incidents[i]) {
			xr.AddCell().SetString(v)
		}
	}

	if err := wb.Save(path); err != nil {
		return eris.Wrap(err, fmt.Sprintf("export: save %s", path))
	}
	return nil
}
