package store

import (
	"context"
	"encoding/binary"
	"fmt"
)

// migrationStep is one idempotent, numbered schema step, grounded on
// dispersy's database.py check_database/open pairing (spec §6 "Schema
// versioning"; see original_source/ — supplemented feature, see
// DESIGN.md).
type migrationStep struct {
	version int
	apply   func(ctx context.Context, s Store) error
}

// steps is deliberately a single no-op entry today: SchemaVersion 1 is the
// only version this implementation has ever shipped. Future schema changes
// append steps here rather than mutating an existing one.
var steps = []migrationStep{
	{version: 1, apply: func(ctx context.Context, s Store) error { return nil }},
}

// Migrate brings a store's on-disk schema version up to SchemaVersion,
// applying every step above the currently recorded version in order. A
// version above SchemaVersion is always fatal (spec §6).
func Migrate(ctx context.Context, s Store) error {
	current, err := readVersion(ctx, s)
	if err != nil {
		return err
	}

	if current > SchemaVersion {
		return fmt.Errorf("%w: on-disk version %d > supported %d", ErrSchemaVersionUnsupported, current, SchemaVersion)
	}

	for _, step := range steps {
		if step.version <= current {
			continue
		}
		if err := step.apply(ctx, s); err != nil {
			return fmt.Errorf("store: migrate to version %d: %w", step.version, err)
		}
		if err := writeVersion(ctx, s, step.version); err != nil {
			return err
		}
	}
	return nil
}

func readVersion(ctx context.Context, s Store) (int, error) {
	raw, ok, err := s.GetOption(ctx, OptionDatabaseVersion)
	if err != nil {
		return 0, fmt.Errorf("store: read schema version: %w", err)
	}
	if !ok || len(raw) != 8 {
		return 0, nil
	}
	return int(binary.BigEndian.Uint64(raw)), nil
}

func writeVersion(ctx context.Context, s Store, version int) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(version))
	if err := s.SetOption(ctx, OptionDatabaseVersion, buf[:]); err != nil {
		return fmt.Errorf("store: write schema version: %w", err)
	}
	return nil
}
