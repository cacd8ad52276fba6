package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/meridian-ehs/incidentctl/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS incidents (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company       TEXT NOT NULL,
	incident_date TIMESTAMPTZ NOT NULL,
	record        JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS classifications (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	incident_id     TEXT NOT NULL REFERENCES incidents(id),
	tier            INTEGER NOT NULL,
	tier_label      TEXT NOT NULL,
	report_required BOOLEAN NOT NULL DEFAULT false,
	criterion       TEXT NOT NULL,
	justification   TEXT NOT NULL,
	breakdown       JSONB,
	classified_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_incidents_company ON incidents(company);
CREATE INDEX IF NOT EXISTS idx_incidents_date ON incidents(incident_date);
CREATE INDEX IF NOT EXISTS idx_classifications_incident ON classifications(incident_id, classified_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateIncident(ctx context.Context, rec model.ImpactRecord) (*model.Incident, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal record")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO incidents (id, company, incident_date, record, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, rec.Company, rec.IncidentDate, recordJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert incident")
	}

	return &model.Incident{
		ID:        id,
		Record:    rec,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateIncident(ctx context.Context, id string, rec model.ImpactRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE incidents SET company = $1, incident_date = $2, record = $3, updated_at = $4 WHERE id = $5`,
		rec.Company, rec.IncidentDate, recordJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update incident %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: incident %s not found", id)
	}
	return nil
}

func (s *PostgresStore) GetIncident(ctx context.Context, id string) (*model.Incident, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, record, created_at, updated_at FROM incidents WHERE id = $1`, id,
	)

	inc, err := scanPostgresIncident(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: incident %s not found", id)
		}
		return nil, eris.Wrapf(err, "postgres: get incident %s", id)
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
func (s *PostgresStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]model.Incident, error) {
	query := `
		SELECT i.id, i.record, i.created_at, i.updated_at,
		       c.id, c.tier, c.tier_label, c.report_required, c.criterion, c.justification, c.breakdown, c.classified_at
		FROM incidents i
		LEFT JOIN LATERAL (
			SELECT id, tier, tier_label, report_required, criterion, justification, breakdown, classified_at
			FROM classifications WHERE incident_id = i.id
			ORDER BY classified_at DESC LIMIT 1
		) c ON true`
	var args []any
	if filter.Company != "" {
		query += ` WHERE i.company = $1`
		args = append(args, filter.Company)
	}
	query += ` ORDER BY i.created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list incidents")
	}
	defer rows.Close()

	var incidents []model.Incident
	for rows.Next() {
		var inc model.Incident
		var recordJSON, breakdownJSON []byte
		var cid, label, criterion, justification *string
		var tier *int
		var report *bool
		var classifiedAt *time.Time
		if err := rows.Scan(&inc.ID, &recordJSON, &inc.CreatedAt, &inc.UpdatedAt,
			&cid, &tier, &label, &report, &criterion, &justification, &breakdownJSON, &classifiedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan incident")
		}
		if err := json.Unmarshal(recordJSON, &inc.Record); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record")
		}
		if cid != nil {
			c := &model.Classification{
				ID:             *cid,
				IncidentID:     inc.ID,
				Tier:           *tier,
				TierLabel:      *label,
				ReportRequired: *report,
				Criterion:      *criterion,
				Justification:  *justification,
				ClassifiedAt:   *classifiedAt,
			}
			if len(breakdownJSON) > 0 && string(breakdownJSON) != "null" {
				if err := json.Unmarshal(breakdownJSON, &c.Breakdown); err != nil {
					return nil, eris.Wrap(err, "postgres: unmarshal breakdown")
				}
			}
			inc.Latest = c
		}
		incidents = append(incidents, inc)
	}
	return incidents, eris.Wrap(rows.Err(), "postgres: iterate incidents")
}

func (s *PostgresStore) SaveClassification(ctx context.Context, incidentID string, c *model.Classification) (*model.Classification, error) {
	saved := *c
	saved.ID = uuid.New().String()
	saved.IncidentID = incidentID
	saved.ClassifiedAt = time.Now().UTC()

	breakdownJSON, err := json.Marshal(saved.Breakdown)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal breakdown")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO classifications (id, incident_id, tier, tier_label, report_required, criterion, justification, breakdown, classified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		saved.ID, incidentID, saved.Tier, saved.TierLabel, saved.ReportRequired,
		saved.Criterion, saved.Justification, breakdownJSON, saved.ClassifiedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert classification for %s", incidentID)
	}
	return &saved, nil
}

func (s *PostgresStore) LatestClassification(ctx context.Context, incidentID string) (*model.Classification, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, incident_id, tier, tier_label, report_required, criterion, justification, breakdown, classified_at
		 FROM classifications WHERE incident_id = $1 ORDER BY classified_at DESC LIMIT 1`, incidentID,
	)

	c, err := scanPostgresClassification(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest classification for %s", incidentID)
	}
	return c, nil
}

func (s *PostgresStore) ListClassifications(ctx context.Context, incidentID string) ([]model.Classification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, incident_id, tier, tier_label, report_required, criterion, justification, breakdown, classified_at
		 FROM classifications WHERE incident_id = $1 ORDER BY classified_at DESC`, incidentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list classifications for %s", incidentID)
	}
	defer rows.Close()

	var out []model.Classification
	for rows.Next() {
		c, err := scanPostgresClassification(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan classification")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate classifications")
}

func (s *PostgresStore) Summary(ctx context.Context) (*model.DashboardSummary, error) {
	summary := &model.DashboardSummary{ByTier: map[string]int{}}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&summary.Incidents); err != nil {
		return nil, eris.Wrap(err, "postgres: count incidents")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (incident_id) tier_label, report_required
		FROM classifications
		ORDER BY incident_id, classified_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summary")
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var report bool
		if err := rows.Scan(&label, &report); err != nil {
			return nil, eris.Wrap(err, "postgres: scan summary row")
		}
		summary.Classified++
		summary.ByTier[label]++
		if report {
			summary.ReportRequired++
		}
	}
	return summary, eris.Wrap(rows.Err(), "postgres: iterate summary")
}

func scanPostgresIncident(row pgx.Row) (*model.Incident, error) {
	var inc model.Incident
	var recordJSON []byte
	if err := row.Scan(&inc.ID, &recordJSON, &inc.CreatedAt, &inc.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(recordJSON, &inc.Record); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal record")
	}
	return &inc, nil
}

func scanPostgresClassification(row pgx.Row) (*model.Classification, error) {
	var c model.Classification
	var breakdownJSON []byte
	if err := row.Scan(&c.ID, &c.IncidentID, &c.Tier, &c.TierLabel, &c.ReportRequired,
		&c.Criterion, &c.Justification, &breakdownJSON, &c.ClassifiedAt); err != nil {
		return nil, err
	}
	if len(breakdownJSON) > 0 && string(breakdownJSON) != "null" {
		if err := json.Unmarshal(breakdownJSON, &c.Breakdown); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal breakdown")
		}
	}
	return &c, nil
}
