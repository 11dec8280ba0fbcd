// Package store persists completed call records in Postgres. Persistence
// is optional: the gateway runs without it and the call-record routes
// report unavailable.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/pitchroom/pitchroom/pkg/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// CallRecord is one finished (or dropped) practice call.
type CallRecord struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Duration   int       `json:"duration"`
	Status     string    `json:"status"`
	Transcript string    `json:"transcript,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CallStore reads and writes call records.
type CallStore struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres, applies pending migrations, and returns a
// ready store.
func Open(ctx context.Context, databaseURL string) (*CallStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	if err := migrate(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &CallStore{pool: pool}, nil
}

func migrate(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Insert validates and persists one call record, filling in id and
// created_at.
func (s *CallStore) Insert(ctx context.Context, rec CallRecord) (CallRecord, error) {
	rec.AgentID = strings.TrimSpace(rec.AgentID)
	if rec.AgentID == "" {
		return CallRecord{}, core.NewValidationErrorWithParam("agent_id is required", "agent_id")
	}
	if rec.Duration < 0 {
		return CallRecord{}, core.NewValidationErrorWithParam("duration must be >= 0", "duration")
	}
	rec.Status = strings.TrimSpace(rec.Status)
	if rec.Status == "" {
		rec.Status = "completed"
	}

	rec.ID = uuid.NewString()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO call_records (id, agent_id, duration_seconds, status, transcript)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		 RETURNING created_at`,
		rec.ID, rec.AgentID, rec.Duration, rec.Status, rec.Transcript,
	)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return CallRecord{}, fmt.Errorf("insert call record: %w", err)
	}
	return rec, nil
}

// Recent lists the newest call records, at most limit of them.
func (s *CallStore) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_id, duration_seconds, status, COALESCE(transcript, ''), created_at
		 FROM call_records
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list call records: %w", err)
	}
	defer rows.Close()

	out := make([]CallRecord, 0, limit)
	for rows.Next() {
		var rec CallRecord
		if err := rows.Scan(&rec.ID, &rec.AgentID, &rec.Duration, &rec.Status, &rec.Transcript, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan call record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call records: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (s *CallStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
