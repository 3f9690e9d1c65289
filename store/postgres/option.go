package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func (s *Store) GetOption(ctx context.Context, key string) ([]byte, bool, error) {
	q := s.querier(ctx)
	var value []byte
	err := q.QueryRow(ctx, `SELECT value FROM option WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store/postgres: get option: %w", err)
	}
	return value, true, nil
}

func (s *Store) SetOption(ctx context.Context, key string, value []byte) error {
	q := s.querier(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO option (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("store/postgres: set option: %w", err)
	}
	return nil
}
