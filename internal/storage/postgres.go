package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/lastframe/internal/models"
)

// PostgresStorage records results in PostgreSQL. The gravity center of each
// retained frame is stored as a pgvector so final frames can be searched by color.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to databaseURL and makes sure the schema exists
func NewPostgresStorage(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := InitSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStorage{pool: pool}, nil
}

// Close closes the database connection
func (s *PostgresStorage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// AddResult inserts one row per processed video
func (s *PostgresStorage) AddResult(ctx context.Context, result models.Result) error {
	var (
		outputPath *string
		frameIndex *int
		center     *pgvector.Vector
	)
	if result.Found {
		outputPath = &result.OutputPath
		frameIndex = &result.FrameIndex
	}
	if len(result.GravityCenter) > 0 {
		v := pgvector.NewVector(toFloat32(result.GravityCenter))
		center = &v
	}

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO last_frames
        (id, video_name, video_path, found, output_path, frame_index, frames_scanned,
         blank_frames, tolerance, gravity_center, description, duration_ms, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.New(), result.VideoName, result.VideoPath, result.Found, outputPath, frameIndex,
		result.FramesScanned, result.BlankFrames, result.Tolerance, center, result.Description,
		result.Duration.Milliseconds(), createdAt)
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// Flush implements the Storage interface - no-op for Postgres as we save immediately
func (s *PostgresStorage) Flush() error {
	return nil
}

// SearchSimilarFrames finds stored frames whose gravity center is closest to center
func (s *PostgresStorage) SearchSimilarFrames(ctx context.Context, center []float64, limit int) ([]models.FrameSearchResult, error) {
	query := pgvector.NewVector(toFloat32(center))

	rows, err := s.pool.Query(ctx,
		`SELECT video_name, video_path, output_path, frame_index,
        gravity_center <-> $1 AS distance
        FROM last_frames
        WHERE found AND vector_dims(gravity_center) = $2
        ORDER BY gravity_center <-> $1
        LIMIT $3`,
		query, len(center), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar frames: %w", err)
	}
	defer rows.Close()

	var results []models.FrameSearchResult
	for rows.Next() {
		var result models.FrameSearchResult
		if err := rows.Scan(&result.VideoName, &result.VideoPath, &result.OutputPath,
			&result.FrameIndex, &result.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// InitSchema creates the pgvector extension and results table if they don't exist
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS last_frames (
            id UUID PRIMARY KEY,
            video_name VARCHAR(255) NOT NULL,
            video_path TEXT NOT NULL,
            found BOOLEAN NOT NULL,
            output_path TEXT,
            frame_index INTEGER,
            frames_scanned INTEGER NOT NULL,
            blank_frames INTEGER NOT NULL,
            tolerance DOUBLE PRECISION NOT NULL,
            gravity_center vector,
            description TEXT NOT NULL DEFAULT '',
            duration_ms BIGINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );

        CREATE INDEX IF NOT EXISTS idx_last_frames_video_name ON last_frames(video_name);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	return nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
