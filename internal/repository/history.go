package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CrashCast/internal/domain/models"
	"CrashCast/internal/domain/repository"
)

// ClickHouseHistory implements HistoryStore for ClickHouse.
type ClickHouseHistory struct {
	db    *sql.DB
	table string
}

// NewClickHouseHistory creates a ClickHouse-backed history store.
func NewClickHouseHistory(db *sql.DB, table string) repository.HistoryStore {
	return &ClickHouseHistory{db: db, table: table}
}

func (s *ClickHouseHistory) Init(ctx context.Context) error {
	q := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            ts DateTime64(3),
            round Int64,
            phase_key LowCardinality(String),
            multiplier Float64,
            category LowCardinality(String),
            color LowCardinality(String),
            crash_ts DateTime64(3),
            source LowCardinality(String)
        ) ENGINE = MergeTree()
        PARTITION BY toYYYYMMDD(ts)
        ORDER BY (ts, round)
        TTL toDateTime(ts) + INTERVAL 30 DAY
    `, s.table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

func (s *ClickHouseHistory) Store(ctx context.Context, ev models.PredictionEvent) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, round, phase_key, multiplier, category, color, crash_ts, source) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		ev.Timestamp,
		ev.Round,
		ev.PhaseKey,
		ev.Multiplier,
		ev.Category,
		ev.Color,
		ev.CrashTime,
		ev.Source,
	)
	return err
}

func (s *ClickHouseHistory) Query(ctx context.Context, from, to time.Time, category string, limit int) ([]models.PredictionEvent, error) {
	q := fmt.Sprintf("SELECT ts, round, phase_key, multiplier, category, color, crash_ts, source FROM %s WHERE ts >= ? AND ts <= ?", s.table)
	args := []interface{}{from, to}
	if category != "" {
		q += " AND category = ?"
		args = append(args, category)
	}
	q += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.PredictionEvent, 0, limit)
	for rows.Next() {
		var ev models.PredictionEvent
		if err := rows.Scan(&ev.Timestamp, &ev.Round, &ev.PhaseKey, &ev.Multiplier, &ev.Category, &ev.Color, &ev.CrashTime, &ev.Source); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *ClickHouseHistory) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseHistory) Close() error {
	return nil // pool managed by pkg client
}

// Process lets the store sit behind a sink pipeline.
func (s *ClickHouseHistory) Process(ctx context.Context, ev models.PredictionEvent) error {
	return s.Store(ctx, ev)
}
