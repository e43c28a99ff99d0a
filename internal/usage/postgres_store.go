package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schema = `
	CREATE TABLE IF NOT EXISTS completion_usage (
		id                BIGSERIAL PRIMARY KEY,
		request_id        TEXT        NOT NULL,
		model_uri         TEXT        NOT NULL,
		outcome           TEXT        NOT NULL,
		input_tokens      BIGINT      NOT NULL DEFAULT 0,
		completion_tokens BIGINT      NOT NULL DEFAULT 0,
		latency_ms        BIGINT      NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the usage table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create usage table: %w", err)
	}
	return nil
}

func (s *PostgresStore) LogUsage(ctx context.Context, log *Log) error {
	query := `
		INSERT INTO completion_usage (request_id, model_uri, outcome, input_tokens, completion_tokens, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, created_at
	`
	err := s.db.QueryRow(ctx, query,
		log.RequestID, log.ModelURI, log.Outcome,
		log.InputTokens, log.CompletionTokens, log.LatencyMs,
	).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to log usage: %w", err)
	}

	return nil
}

func (s *PostgresStore) ListUsage(ctx context.Context, from, to time.Time) ([]*Log, error) {
	query := `
		SELECT id::text, request_id, model_uri, outcome, input_tokens, completion_tokens, latency_ms, created_at
		FROM completion_usage
		WHERE created_at BETWEEN $1 AND $2
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer rows.Close()

	var logs []*Log
	for rows.Next() {
		var l Log
		err := rows.Scan(
			&l.ID, &l.RequestID, &l.ModelURI, &l.Outcome,
			&l.InputTokens, &l.CompletionTokens, &l.LatencyMs, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage logs: %w", err)
	}

	return logs, nil
}

func (s *PostgresStore) Summarize(ctx context.Context, from, to time.Time) (*Summary, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(completion_tokens), 0)
		FROM completion_usage
		WHERE created_at BETWEEN $1 AND $2
	`
	var sum Summary
	err := s.db.QueryRow(ctx, query, from, to).Scan(&sum.Requests, &sum.InputTokens, &sum.CompletionTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}

	return &sum, nil
}
