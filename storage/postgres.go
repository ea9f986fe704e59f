package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"trivia/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepo archives finished games. Live rooms never touch it.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (pgr *PostgresRepo) Close() {
	pgr.pool.Close()
}

func wrapDatabaseError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
}

func (pgr *PostgresRepo) RecordGame(ctx context.Context, result domain.GameResult) error {
	standings, err := json.Marshal(result.Standings)
	if err != nil {
		return fmt.Errorf("encode standings: %w", err)
	}

	_, err = pgr.pool.Exec(ctx,
		"INSERT INTO game_results(room_code, finished_at, questions, standings) VALUES($1, $2, $3, $4)",
		result.RoomCode, result.FinishedAt, result.Questions, standings,
	)
	if err != nil {
		return wrapDatabaseError(err)
	}
	return nil
}

// RecentResults returns the latest archived games, newest first.
func (pgr *PostgresRepo) RecentResults(ctx context.Context, limit int) ([]domain.GameResult, error) {
	rows, err := pgr.pool.Query(ctx,
		"SELECT room_code, finished_at, questions, standings FROM game_results ORDER BY finished_at DESC, id DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, wrapDatabaseError(err)
	}
	defer rows.Close()

	results := make([]domain.GameResult, 0, limit)
	for rows.Next() {
		var (
			result    domain.GameResult
			finished  time.Time
			standings []byte
		)
		if err := rows.Scan(&result.RoomCode, &finished, &result.Questions, &standings); err != nil {
			return nil, wrapDatabaseError(err)
		}
		if err := json.Unmarshal(standings, &result.Standings); err != nil {
			return nil, fmt.Errorf("%w: decode standings: %w", domain.UnexpectedDatabaseError, err)
		}
		result.FinishedAt = finished.UTC()
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDatabaseError(err)
	}

	return results, nil
}
