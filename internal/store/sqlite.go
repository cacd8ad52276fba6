package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/meridian-ehs/incidentctl/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS incidents (
	id            TEXT PRIMARY KEY,
	company       TEXT NOT NULL,
	incident_date DATETIME NOT NULL,
	record        TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS classifications (
	id              TEXT PRIMARY KEY,
	incident_id     TEXT NOT NULL REFERENCES incidents(id),
	tier            INTEGER NOT NULL,
	tier_label      TEXT NOT NULL,
	report_required INTEGER NOT NULL DEFAULT 0,
	criterion       TEXT NOT NULL,
	justification   TEXT NOT NULL,
	breakdown       TEXT,
	classified_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_incidents_company ON incidents(company);
CREATE INDEX IF NOT EXISTS idx_incidents_date ON incidents(incident_date);
CREATE INDEX IF NOT EXISTS idx_classifications_incident ON classifications(incident_id, classified_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateIncident(ctx context.Context, rec model.ImpactRecord) (*model.Incident, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO incidents (id, company, incident_date, record, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, rec.Company, rec.IncidentDate, string(recordJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert incident")
	}

	return &model.Incident{
		ID:        id,
		Record:    rec,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateIncident(ctx context.Context, id string, rec model.ImpactRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET company = ?, incident_date = ?, record = ?, updated_at = ? WHERE id = ?`,
		rec.Company, rec.IncidentDate, string(recordJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update incident %s", id)
	}
	return checkRowsAffected(res, "incident", id)
}

func (s *SQLiteStore) GetIncident(ctx context.Context, id string) (*model.Incident, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, record, created_at, updated_at FROM incidents WHERE id = ?`, id,
	)

	inc, err := scanSQLiteIncident(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Errorf("sqlite: incident %s not found", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get incident %s", id)
	}

	latest, err := s.LatestClassification(ctx, id)
	if err != nil {
		return nil, err
	}
	inc.Latest = latest
	return inc, nil
}

// ListIncidents returns incidents with their latest classification joined in,
// avoiding a per-incident lookup.
func (s *SQLiteStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]model.Incident, error) {
	query := `
		SELECT i.id, i.record, i.created_at, i.updated_at,
		       c.id, c.tier, c.tier_label, c.report_required, c.criterion, c.justification, c.breakdown, c.classified_at
		FROM incidents i
		LEFT JOIN (
			SELECT c.* FROM classifications c
			JOIN (
				SELECT incident_id, MAX(classified_at) AS latest
				FROM classifications GROUP BY incident_id
			) l ON l.incident_id = c.incident_id AND l.latest = c.classified_at
		) c ON c.incident_id = i.id`
	var args []any
	if filter.Company != "" {
		query += ` WHERE i.company = ?`
		args = append(args, filter.Company)
	}
	query += ` ORDER BY i.created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list incidents")
	}
	defer rows.Close()

	var incidents []model.Incident
	for rows.Next() {
		var inc model.Incident
		var recordJSON string
		var cid, label, criterion, justification, breakdown sql.NullString
		var tier sql.NullInt64
		var report sql.NullBool
		var classifiedAt sql.NullTime
		if err := rows.Scan(&inc.ID, &recordJSON, &inc.CreatedAt, &inc.UpdatedAt,
			&cid, &tier, &label, &report, &criterion, &justification, &breakdown, &classifiedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan incident")
		}
		if err := json.Unmarshal([]byte(recordJSON), &inc.Record); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record")
		}
		if cid.Valid {
			c := &model.Classification{
				ID:             cid.String,
				IncidentID:     inc.ID,
				Tier:           int(tier.Int64),
				TierLabel:      label.String,
				ReportRequired: report.Bool,
				Criterion:      criterion.String,
				Justification:  justification.String,
				ClassifiedAt:   classifiedAt.Time,
			}
			if breakdown.Valid && breakdown.String != "" && breakdown.String != "null" {
				if err := json.Unmarshal([]byte(breakdown.String), &c.Breakdown); err != nil {
					return nil, eris.Wrap(err, "sqlite: unmarshal breakdown")
				}
			}
			inc.Latest = c
		}
		incidents = append(incidents, inc)
	}
	return incidents, eris.Wrap(rows.Err(), "sqlite: iterate incidents")
}

func (s *SQLiteStore) SaveClassification(ctx context.Context, incidentID string, c *model.Classification) (*model.Classification, error) {
	saved := *c
	saved.ID = uuid.New().String()
	saved.IncidentID = incidentID
	saved.ClassifiedAt = time.Now().UTC()

	breakdownJSON, err := json.Marshal(saved.Breakdown)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal breakdown")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO classifications (id, incident_id, tier, tier_label, report_required, criterion, justification, breakdown, classified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		saved.ID, incidentID, saved.Tier, saved.TierLabel, saved.ReportRequired,
		saved.Criterion, saved.Justification, string(breakdownJSON), saved.ClassifiedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert classification for %s", incidentID)
	}
	return &saved, nil
}

func (s *SQLiteStore) LatestClassification(ctx context.Context, incidentID string) (*model.Classification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, incident_id, tier, tier_label, report_required, criterion, justification, breakdown, classified_at
		 FROM classifications WHERE incident_id = ? ORDER BY classified_at DESC LIMIT 1`, incidentID,
	)

	c, err := scanSQLiteClassification(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: latest classification for %s", incidentID)
	}
	return c, nil
}

func (s *SQLiteStore) ListClassifications(ctx context.Context, incidentID string) ([]model.Classification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, incident_id, tier, tier_label, report_required, criterion, justification, breakdown, classified_at
		 FROM classifications WHERE incident_id = ? ORDER BY classified_at DESC`, incidentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list classifications for %s", incidentID)
	}
	defer rows.Close()

	var out []model.Classification
	for rows.Next() {
		c, err := scanSQLiteClassification(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan classification")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate classifications")
}

func (s *SQLiteStore) Summary(ctx context.Context) (*model.DashboardSummary, error) {
	summary := &model.DashboardSummary{ByTier: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&summary.Incidents); err != nil {
		return nil, eris.Wrap(err, "sqlite: count incidents")
	}

	// Aggregate over the latest classification per incident.
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.tier_label, c.report_required
		FROM classifications c
		JOIN (
			SELECT incident_id, MAX(classified_at) AS latest
			FROM classifications GROUP BY incident_id
		) l ON l.incident_id = c.incident_id AND l.latest = c.classified_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summary")
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var report bool
		if err := rows.Scan(&label, &report); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan summary row")
		}
		summary.Classified++
		summary.ByTier[label]++
		if report {
			summary.ReportRequired++
		}
	}
	return summary, eris.Wrap(rows.Err(), "sqlite: iterate summary")
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteIncident(row scanner) (*model.Incident, error) {
	var inc model.Incident
	var recordJSON string
	if err := row.Scan(&inc.ID, &recordJSON, &inc.CreatedAt, &inc.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(recordJSON), &inc.Record); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record")
	}
	return &inc, nil
}

func scanSQLiteClassification(row scanner) (*model.Classification, error) {
	var c model.Classification
	var breakdownJSON sql.NullString
	if err := row.Scan(&c.ID, &c.IncidentID, &c.Tier, &c.TierLabel, &c.ReportRequired,
		&c.Criterion, &c.Justification, &breakdownJSON, &c.ClassifiedAt); err != nil {
		return nil, err
	}
	if breakdownJSON.Valid && breakdownJSON.String != "" && breakdownJSON.String != "null" {
		if err := json.Unmarshal([]byte(breakdownJSON.String), &c.Breakdown); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal breakdown")
		}
	}
	return &c, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}
