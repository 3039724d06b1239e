package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/shared"
)

// ErrPlayNotFound is returned by [HistoryRepository.Get] for unknown ids.
var ErrPlayNotFound = errors.New("play not found")

const playColumns = "id, sequence, track_id, uri, name, artists, album, duration_ms, device_id, played_at"

// PlayCount is a track and the number of times it was played.
type PlayCount struct {
	TrackID string
	Name    string
	Artists string
	Plays   int
}

// HistoryRepository persists [models.Play] entries.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record inserts play with a generated ID and sequence.
func (r *HistoryRepository) Record(ctx context.Context, play *models.Play) error {
	if err := play.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "plays")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	play.ID = shared.GenerateID()
	play.Sequence = sequence

	query := `
		INSERT INTO plays (` + playColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		play.ID,
		play.Sequence,
		play.TrackID,
		play.URI,
		play.Name,
		play.Artists,
		play.Album,
		play.DurationMs,
		play.DeviceID,
		play.PlayedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert play: %w", err)
	}

	return nil
}

// Get retrieves a play by ID
func (r *HistoryRepository) Get(ctx context.Context, id string) (*models.Play, error) {
	query := `SELECT ` + playColumns + ` FROM plays WHERE id = ?`

	play, err := scanPlay(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPlayNotFound, id)
	}
	return play, err
}

// Recent returns up to limit plays, newest first. A limit below one returns every play.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]*models.Play, error) {
	query := `SELECT ` + playColumns + ` FROM plays ORDER BY sequence DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []*models.Play
	for rows.Next() {
		play, err := scanPlay(rows)
		if err != nil {
			return nil, err
		}
		plays = append(plays, play)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return plays, nil
}

// Count returns the number of recorded plays.
func (r *HistoryRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plays").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count plays: %w", err)
	}
	return n, nil
}

// MostPlayed returns up to limit tracks ordered by play count, most recent first on ties.
func (r *HistoryRepository) MostPlayed(ctx context.Context, limit int) ([]PlayCount, error) {
	query := `
		SELECT track_id, name, artists, COUNT(*) AS plays
		FROM plays
		GROUP BY track_id
		ORDER BY plays DESC, MAX(sequence) DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, max(limit, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to query play counts: %w", err)
	}
	defer rows.Close()

	var counts []PlayCount
	for rows.Next() {
		var c PlayCount
		if err := rows.Scan(&c.TrackID, &c.Name, &c.Artists, &c.Plays); err != nil {
			return nil, fmt.Errorf("failed to scan play count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanPlay scans a single row into a [models.Play]
func scanPlay(row scanner) (*models.Play, error) {
	var p models.Play
	err := row.Scan(&p.ID, &p.Sequence, &p.TrackID, &p.URI, &p.Name, &p.Artists, &p.Album, &p.DurationMs, &p.DeviceID, &p.PlayedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan play: %w", err)
	}
	return &p, nil
}
