package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sage-x-project/meshnet/store"
)

func (s *Store) Put(ctx context.Context, row store.SyncRow) (int64, error) {
	q := s.querier(ctx)
	var seq interface{}
	if row.HasSequence {
		seq = row.Sequence
	}

	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO sync (community, member, global_time, meta_message, undone, packet, sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (community, member, global_time) DO UPDATE SET community = EXCLUDED.community
		RETURNING id`,
		row.Community, row.Member, row.GlobalTime, row.MetaMessage, row.Undone, row.Packet, seq,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store/postgres: put sync row: %w", err)
	}
	return id, nil
}

func scanSyncRow(row pgx.Row) (*store.SyncRow, error) {
	r := &store.SyncRow{}
	var seq *int64
	err := row.Scan(&r.ID, &r.Community, &r.Member, &r.GlobalTime, &r.MetaMessage, &r.Undone, &r.Packet, &seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if seq != nil {
		r.HasSequence = true
		r.Sequence = uint64(*seq)
	}
	return r, nil
}

const syncColumns = `id, community, member, global_time, meta_message, undone, packet, sequence`

func (s *Store) GetByKey(ctx context.Context, communityID, memberID int64, globalTime uint64) (*store.SyncRow, error) {
	q := s.querier(ctx)
	row, err := scanSyncRow(q.QueryRow(ctx, `SELECT `+syncColumns+` FROM sync WHERE community=$1 AND member=$2 AND global_time=$3`,
		communityID, memberID, globalTime))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("store/postgres: get by key: %w", err)
	}
	return row, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*store.SyncRow, error) {
	q := s.querier(ctx)
	row, err := scanSyncRow(q.QueryRow(ctx, `SELECT `+syncColumns+` FROM sync WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("store/postgres: get by id: %w", err)
	}
	return row, nil
}

func (s *Store) Range(ctx context.Context, metaID int64, low, high, modulo, offset uint64, direction store.Direction) ([]store.SyncRow, error) {
	q := s.querier(ctx)

	order := "ASC"
	if direction == store.DirectionDESC {
		order = "DESC"
	} else if direction == store.DirectionRANDOM {
		order = "" // handled specially below
	}

	var sqlText string
	var args []interface{}
	if order == "" {
		sqlText = `SELECT ` + syncColumns + ` FROM sync
			WHERE meta_message=$1 AND global_time BETWEEN $2 AND $3
			AND ($4 = 0 OR (global_time + $5) % $4 = 0)
			ORDER BY random()`
		args = []interface{}{metaID, low, high, modulo, offset}
	} else {
		sqlText = `SELECT ` + syncColumns + ` FROM sync
			WHERE meta_message=$1 AND global_time BETWEEN $2 AND $3
			AND ($4 = 0 OR (global_time + $5) % $4 = 0)
			ORDER BY global_time ` + order
		args = []interface{}{metaID, low, high, modulo, offset}
	}

	rows, err := q.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: range: %w", err)
	}
	defer rows.Close()

	var out []store.SyncRow
	for rows.Next() {
		r, err := scanSyncRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store/postgres: range scan: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) MarkUndone(ctx context.Context, targetID, undoID int64) error {
	q := s.querier(ctx)
	tag, err := q.Exec(ctx, `UPDATE sync SET undone=$1 WHERE id=$2`, undoID, targetID)
	if err != nil {
		return fmt.Errorf("store/postgres: mark undone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ClearUndone(ctx context.Context, targetID int64) error {
	q := s.querier(ctx)
	tag, err := q.Exec(ctx, `UPDATE sync SET undone=0 WHERE id=$1`, targetID)
	if err != nil {
		return fmt.Errorf("store/postgres: clear undone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context, metaID int64) (int64, error) {
	q := s.querier(ctx)
	var n int64
	err := q.QueryRow(ctx, `SELECT count(*) FROM sync WHERE meta_message=$1`, metaID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store/postgres: count: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	q := s.querier(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM double_signed_sync WHERE sync=$1`, id); err != nil {
		return fmt.Errorf("store/postgres: delete double-signed: %w", err)
	}
	tag, err := q.Exec(ctx, `DELETE FROM sync WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("store/postgres: delete sync row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) LastSequence(ctx context.Context, metaID, memberID int64) (uint64, uint64, bool, error) {
	q := s.querier(ctx)
	var seq, gt *int64
	err := q.QueryRow(ctx, `
		SELECT sequence, global_time FROM sync
		WHERE meta_message=$1 AND member=$2 AND sequence IS NOT NULL
		ORDER BY sequence DESC LIMIT 1`, metaID, memberID,
	).Scan(&seq, &gt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("store/postgres: last sequence: %w", err)
	}
	return uint64(*seq), uint64(*gt), true, nil
}

func (s *Store) GetBySequence(ctx context.Context, metaID, memberID int64, sequence uint64) (*store.SyncRow, error) {
	q := s.querier(ctx)
	row, err := scanSyncRow(q.QueryRow(ctx, `SELECT `+syncColumns+` FROM sync WHERE meta_message=$1 AND member=$2 AND sequence=$3`,
		metaID, memberID, sequence))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("store/postgres: get by sequence: %w", err)
	}
	return row, nil
}

func (s *Store) ByLastNKey(ctx context.Context, metaID, member1ID, member2ID int64) ([]store.SyncRow, error) {
	q := s.querier(ctx)

	var rows pgx.Rows
	var err error
	if member2ID == 0 {
		rows, err = q.Query(ctx, `
			SELECT `+syncColumns+` FROM sync s
			WHERE s.meta_message=$1 AND s.member=$2
			AND NOT EXISTS (SELECT 1 FROM double_signed_sync d WHERE d.sync = s.id)
			ORDER BY s.global_time DESC`, metaID, member1ID)
	} else {
		a, b := member1ID, member2ID
		if a > b {
			a, b = b, a
		}
		rows, err = q.Query(ctx, `
			SELECT `+syncColumns+` FROM sync s
			JOIN double_signed_sync d ON d.sync = s.id
			WHERE s.meta_message=$1
			AND LEAST(d.member1, d.member2) = $2 AND GREATEST(d.member1, d.member2) = $3
			ORDER BY s.global_time DESC`, metaID, a, b)
	}
	if err != nil {
		return nil, fmt.Errorf("store/postgres: by last-N key: %w", err)
	}
	defer rows.Close()

	var out []store.SyncRow
	for rows.Next() {
		r, err := scanSyncRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store/postgres: by last-N key scan: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) PutDoubleSigned(ctx context.Context, row store.DoubleSignedRow) error {
	q := s.querier(ctx)
	_, err := q.Exec(ctx, `
		INSERT INTO double_signed_sync (sync, member1, member2) VALUES ($1, $2, $3)
		ON CONFLICT (sync) DO UPDATE SET member1 = EXCLUDED.member1, member2 = EXCLUDED.member2`,
		row.Sync, row.Member1, row.Member2)
	if err != nil {
		return fmt.Errorf("store/postgres: put double-signed: %w", err)
	}
	return nil
}
