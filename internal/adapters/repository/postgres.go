package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/macrofeed/macrofeed/internal/domain/model"
)

// PostgresStore implements RecordStore on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool to dsn and verifies it with a ping.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// InitSchema creates the indicator and release tables when absent.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS indicators (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	country_code TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	source_name  TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL DEFAULT '',
	UNIQUE (name, country_code)
);
CREATE TABLE IF NOT EXISTS releases (
	id           TEXT PRIMARY KEY,
	indicator_id TEXT NOT NULL REFERENCES indicators(id),
	release_at   TIMESTAMPTZ NOT NULL,
	period       TEXT NOT NULL,
	actual       TEXT NOT NULL DEFAULT '',
	forecast     TEXT NOT NULL DEFAULT '',
	previous     TEXT NOT NULL DEFAULT '',
	unit         TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	UNIQUE (indicator_id, release_at, period)
);
CREATE INDEX IF NOT EXISTS releases_indicator_day_idx
	ON releases (indicator_id, period, release_at);`

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// GetIndicator looks up an indicator by (name, countryCode).
func (s *PostgresStore) GetIndicator(ctx context.Context, name, countryCode string) (model.Indicator, error) {
	const q = `SELECT id, name, country_code, category, source_name, source_url
	FROM indicators WHERE name = $1 AND country_code = $2`

	var ind model.Indicator
	err := s.pool.QueryRow(ctx, q, name, countryCode).Scan(
		&ind.ID, &ind.Name, &ind.CountryCode, &ind.Category, &ind.SourceName, &ind.SourceURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Indicator{}, ErrNotFound
	}
	if err != nil {
		return model.Indicator{}, fmt.Errorf("get indicator: %w", err)
	}
	return ind, nil
}

// CreateIndicator persists a new indicator, assigning an ID when absent.
func (s *PostgresStore) CreateIndicator(ctx context.Context, ind model.Indicator) (model.Indicator, error) {
	if ind.ID == "" {
		ind.ID = uuid.NewString()
	}

	const q = `INSERT INTO indicators (id, name, country_code, category, source_name, source_url)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (name, country_code) DO UPDATE SET source_url = EXCLUDED.source_url
	RETURNING id`

	if err := s.pool.QueryRow(ctx, q,
		ind.ID, ind.Name, ind.CountryCode, ind.Category, ind.SourceName, ind.SourceURL,
	).Scan(&ind.ID); err != nil {
		return model.Indicator{}, fmt.Errorf("create indicator: %w", err)
	}
	return ind, nil
}

// FindReleases resolves a chunk of identity keys with a single query
// built as an OR of composite-key predicates.
func (s *PostgresStore) FindReleases(ctx context.Context, keys []model.ReleaseKey) ([]model.Release, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString(`SELECT id, indicator_id, release_at, period, actual, forecast, previous, unit, notes
	FROM releases WHERE (indicator_id, release_at, period) IN (`)
	args := make([]any, 0, len(keys)*3)
	for i, key := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, key.IndicatorID, key.ReleaseAt.UTC(), key.Period)
	}
	b.WriteString(")")

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("find releases: %w", err)
	}
	defer rows.Close()

	return scanReleases(rows)
}

// FindReleasesByDay returns releases for an indicator on one calendar day.
func (s *PostgresStore) FindReleasesByDay(ctx context.Context, indicatorID string, day time.Time, periodLabel string) ([]model.Release, error) {
	start := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	const q = `SELECT id, indicator_id, release_at, period, actual, forecast, previous, unit, notes
	FROM releases
	WHERE indicator_id = $1 AND period = $2 AND release_at >= $3 AND release_at < $4`

	rows, err := s.pool.Query(ctx, q, indicatorID, periodLabel, start, end)
	if err != nil {
		return nil, fmt.Errorf("find releases by day: %w", err)
	}
	defer rows.Close()

	return scanReleases(rows)
}

// InsertReleases persists a batch of new releases in one round trip.
func (s *PostgresStore) InsertReleases(ctx context.Context, releases []model.Release) error {
	if len(releases) == 0 {
		return ErrEmptyBatch
	}

	const q = `INSERT INTO releases (id, indicator_id, release_at, period, actual, forecast, previous, unit, notes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (indicator_id, release_at, period) DO NOTHING`

	batch := &pgx.Batch{}
	for _, rel := range releases {
		if rel.ID == "" {
			rel.ID = uuid.NewString()
		}
		batch.Queue(q, rel.ID, rel.IndicatorID, rel.ReleaseAt.UTC(), rel.Period,
			rel.Actual, rel.Forecast, rel.Previous, rel.Unit, rel.Notes)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range releases {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert releases: %w", err)
		}
	}
	return nil
}

// UpdateRelease mutates the stored release matching key. The store's
// update API matches one key at a time; heterogeneous updates cannot be
// batched, so callers issue these independently.
func (s *PostgresStore) UpdateRelease(ctx context.Context, key model.ReleaseKey, fields ReleaseFields) error {
	sets := make([]string, 0, 6)
	args := []any{key.IndicatorID, key.ReleaseAt.UTC(), key.Period}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if fields.Actual != nil {
		add("actual", *fields.Actual)
	}
	if fields.Forecast != nil {
		add("forecast", *fields.Forecast)
	}
	if fields.Previous != nil {
		add("previous", *fields.Previous)
	}
	if fields.Unit != nil {
		add("unit", *fields.Unit)
	}
	if fields.Notes != nil {
		add("notes", *fields.Notes)
	}
	if fields.ReleaseAt != nil {
		add("release_at", fields.ReleaseAt.UTC())
	}
	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf(`UPDATE releases SET %s
	WHERE indicator_id = $1 AND release_at = $2 AND period = $3`, strings.Join(sets, ", "))

	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update release: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanReleases(rows pgx.Rows) ([]model.Release, error) {
	var out []model.Release
	for rows.Next() {
		var rel model.Release
		if err := rows.Scan(&rel.ID, &rel.IndicatorID, &rel.ReleaseAt, &rel.Period,
			&rel.Actual, &rel.Forecast, &rel.Previous, &rel.Unit, &rel.Notes); err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate releases: %w", err)
	}
	return out, nil
}
