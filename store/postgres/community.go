package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sage-x-project/meshnet/member"
	"github.com/sage-x-project/meshnet/store"
)

func (s *Store) PutCommunity(ctx context.Context, row store.CommunityRow) (int64, error) {
	q := s.querier(ctx)
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO community (master, member, classification, auto_load, database_version)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (master) DO UPDATE SET master = EXCLUDED.master
		RETURNING id`,
		row.Master, row.Member, row.Classification, row.AutoLoad, row.DatabaseVersion,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store/postgres: put community: %w", err)
	}
	return id, nil
}

func (s *Store) GetCommunityByCID(ctx context.Context, cid member.MID) (*store.CommunityRow, error) {
	q := s.querier(ctx)
	row := &store.CommunityRow{}
	err := q.QueryRow(ctx, `
		SELECT c.id, c.master, c.member, c.classification, c.auto_load, c.database_version
		FROM community c JOIN member m ON m.id = c.master
		WHERE m.mid = $1`, cid[:],
	).Scan(&row.ID, &row.Master, &row.Member, &row.Classification, &row.AutoLoad, &row.DatabaseVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: get community by cid: %w", err)
	}
	return row, nil
}

func (s *Store) GetCommunityByID(ctx context.Context, id int64) (*store.CommunityRow, error) {
	q := s.querier(ctx)
	row := &store.CommunityRow{ID: id}
	err := q.QueryRow(ctx, `
		SELECT master, member, classification, auto_load, database_version
		FROM community WHERE id = $1`, id,
	).Scan(&row.Master, &row.Member, &row.Classification, &row.AutoLoad, &row.DatabaseVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: get community by id: %w", err)
	}
	return row, nil
}

func (s *Store) PutMeta(ctx context.Context, communityID int64, name string, priority uint8, direction int) (int64, error) {
	q := s.querier(ctx)
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO meta_message (community, name, priority, direction)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (community, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		communityID, name, priority, direction,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store/postgres: put meta: %w", err)
	}
	return id, nil
}

func (s *Store) GetMeta(ctx context.Context, communityID int64, name string) (*store.MetaMessageRow, error) {
	q := s.querier(ctx)
	row := &store.MetaMessageRow{Community: communityID, Name: name}
	var priority int32
	err := q.QueryRow(ctx, `
		SELECT id, priority, direction FROM meta_message WHERE community = $1 AND name = $2`,
		communityID, name,
	).Scan(&row.ID, &priority, &row.Direction)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: get meta: %w", err)
	}
	row.Priority = uint8(priority)
	return row, nil
}
