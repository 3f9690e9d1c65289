package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/store"
)

func (s *Store) PutMember(ctx context.Context, row store.MemberRow) (int64, error) {
	q := s.querier(ctx)
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO member (mid, public_key, private_key, key_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mid) DO UPDATE SET mid = EXCLUDED.mid
		RETURNING id`,
		row.MID[:], row.PublicKey, nullable(row.PrivateKey), orDefault(row.KeyType, "Ed25519"),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store/postgres: put member: %w", err)
	}
	return id, nil
}

func (s *Store) GetMemberByMID(ctx context.Context, mid member.MID) (*store.MemberRow, error) {
	q := s.querier(ctx)
	row := &store.MemberRow{}
	var midBytes []byte
	err := q.QueryRow(ctx, `SELECT id, mid, public_key, private_key, key_type FROM member WHERE mid = $1`, mid[:]).
		Scan(&row.ID, &midBytes, &row.PublicKey, &row.PrivateKey, &row.KeyType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: get member by mid: %w", err)
	}
	copy(row.MID[:], midBytes)
	return row, nil
}

func (s *Store) GetMemberByID(ctx context.Context, id int64) (*store.MemberRow, error) {
	q := s.querier(ctx)
	row := &store.MemberRow{ID: id}
	var midBytes []byte
	err := q.QueryRow(ctx, `SELECT mid, public_key, private_key, key_type FROM member WHERE id = $1`, id).
		Scan(&midBytes, &row.PublicKey, &row.PrivateKey, &row.KeyType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: get member by id: %w", err)
	}
	copy(row.MID[:], midBytes)
	return row, nil
}

func nullable(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
