package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/meridian-ehs/incidentctl/internal/model"
)

// loadRecord reads one impact record from a JSON or YAML file, by extension.
func loadRecord(path string) (*model.ImpactRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read record %s", path)
	}

	var rec model.ImpactRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrapf(err, "parse record %s", path)
		}
	default:
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrapf(err, "parse record %s", path)
		}
	}
	applyRecordDefaults(&rec)
	return &rec, nil
}

// loadRecordBatch reads a JSON array of impact records.
func loadRecordBatch(path string) ([]model.ImpactRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read batch %s", path)
	}

	var recs []model.ImpactRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &recs); err != nil {
			return nil, eris.Wrapf(err, "parse batch %s", path)
		}
	default:
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, eris.Wrapf(err, "parse batch %s", path)
		}
	}
	for i := range recs {
		applyRecordDefaults(&recs[i])
	}
	return recs, nil
}

// applyRecordDefaults fills fields the form leaves implicit: an unanswered
// homes-damaged question means "none", and intake time defaults to now.
func applyRecordDefaults(rec *model.ImpactRecord) {
	if rec.HomesDamaged == "" {
		rec.HomesDamaged = model.HomesNone
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}
