package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/globeoverlay/backend/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS position_track (
		id          BIGSERIAL PRIMARY KEY,
		lng         DOUBLE PRECISION NOT NULL,
		lat         DOUBLE PRECISION NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS position_track_recorded_at_idx ON position_track (recorded_at);
`

// maxTrackRows bounds one track query
const maxTrackRows = 5000

// PostgresRepository implements domain.TrackRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the track table if it does not exist
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return nil
}

// SavePosition persists a published position to PostgreSQL
func (r *PostgresRepository) SavePosition(ctx context.Context, p domain.GeoPosition) error {
	query := `
		INSERT INTO position_track (lng, lat, recorded_at)
		VALUES ($1, $2, $3)
	`

	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := r.pool.Exec(ctx, query, p.Lng, p.Lat, ts)
	if err != nil {
		return fmt.Errorf("postgres: failed to save position: %w", err)
	}

	return nil
}

// GetTrack retrieves positions recorded between from and to, oldest first
func (r *PostgresRepository) GetTrack(ctx context.Context, from, to time.Time) ([]domain.GeoPosition, error) {
	query := `
		SELECT lng, lat, recorded_at
		FROM position_track
		WHERE recorded_at BETWEEN $1 AND $2
		ORDER BY recorded_at ASC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, from, to, maxTrackRows)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query track: %w", err)
	}
	defer rows.Close()

	var results []domain.GeoPosition
	for rows.Next() {
		var p domain.GeoPosition
		if err := rows.Scan(&p.Lng, &p.Lat, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan track row: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read track rows: %w", err)
	}

	return results, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
