package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sentinelkit/logscrub/internal/logger"
)

// Store keeps the scrub run history in PostgreSQL.
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS scrub_runs (
	id BIGSERIAL PRIMARY KEY,
	mode TEXT NOT NULL,
	input_path TEXT NOT NULL,
	output_path TEXT NOT NULL,
	lines_processed BIGINT NOT NULL,
	bytes_written BIGINT NOT NULL,
	repaired_lines BIGINT NOT NULL DEFAULT 0,
	chunks INTEGER NOT NULL,
	workers INTEGER NOT NULL,
	duration_ms BIGINT NOT NULL,
	rule_count INTEGER NOT NULL,
	rules_fingerprint TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_scrub_runs_created_at ON scrub_runs (created_at DESC)`

// NewStore creates a new run history store
func NewStore(config *Config, log *logger.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	store := &Store{
		db:     db,
		logger: log.WithComponent("audit"),
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	store.logger.Info("audit store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)))

	return store, nil
}

// initialize checks the database connection and ensures the schema exists
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create scrub_runs schema: %w", err)
	}

	return nil
}

// Insert records one completed run and fills in its ID and timestamp
func (s *Store) Insert(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO scrub_runs (
			mode, input_path, output_path, lines_processed, bytes_written,
			repaired_lines, chunks, workers, duration_ms, rule_count, rules_fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		run.Mode,
		run.InputPath,
		run.OutputPath,
		run.LinesProcessed,
		run.BytesWritten,
		run.RepairedLines,
		run.Chunks,
		run.Workers,
		run.DurationMs,
		run.RuleCount,
		run.RulesFingerprint,
	).Scan(&run.ID, &run.CreatedAt)

	if err != nil {
		s.logger.Error("failed to insert run",
			zap.Error(err),
			zap.String("mode", run.Mode),
			zap.String("input_path", run.InputPath))
		return fmt.Errorf("failed to insert run: %w", err)
	}

	s.logger.Debug("run recorded",
		zap.Int64("id", run.ID),
		zap.String("mode", run.Mode),
		zap.Int64("lines", run.LinesProcessed))

	return nil
}

// Recent returns the most recent runs, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, mode, input_path, output_path, lines_processed, bytes_written,
			repaired_lines, chunks, workers, duration_ms, rule_count,
			rules_fingerprint, created_at
		FROM scrub_runs
		ORDER BY created_at DESC
		LIMIT $1`

	var runs []*Run
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to load recent runs: %w", err)
	}

	return runs, nil
}

// GetStats returns aggregate statistics over the run history
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total_runs,
			COALESCE(SUM(lines_processed), 0) AS total_lines,
			COALESCE(SUM(bytes_written), 0) AS total_bytes,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms
		FROM scrub_runs`

	stats := &Stats{}
	if err := s.db.GetContext(ctx, stats, query); err != nil {
		return nil, fmt.Errorf("failed to get run stats: %w", err)
	}

	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks sensitive information in database URL for logging
func maskDatabaseURL(url string) string {
	// Simple masking - replace password with ***
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
