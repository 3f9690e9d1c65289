// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package postgres

// schema is the mandatory persistent schema of spec §6, translated to
// PostgreSQL DDL. The SQLite PRAGMAs spec §6 lists (page size, WAL,
// synchronous=NORMAL, EXCLUSIVE locking under WAL) have no PostgreSQL
// equivalent as session PRAGMAs; this backend instead sets
// `synchronous_commit = off` per connection for the non-durable test
// profile, the closest available analogue; the rest are a deliberate
// no-op on this backend.
const schema = `
CREATE TABLE IF NOT EXISTS member (
	id          BIGSERIAL PRIMARY KEY,
	mid         BYTEA NOT NULL UNIQUE,
	public_key  BYTEA NOT NULL,
	private_key BYTEA,
	key_type    TEXT NOT NULL DEFAULT 'Ed25519'
);
CREATE INDEX IF NOT EXISTS member_mid_idx ON member (mid);

CREATE TABLE IF NOT EXISTS community (
	id               BIGSERIAL PRIMARY KEY,
	master           BIGINT NOT NULL REFERENCES member(id),
	member           BIGINT NOT NULL REFERENCES member(id),
	classification   TEXT NOT NULL,
	auto_load        BOOLEAN NOT NULL DEFAULT TRUE,
	database_version INT NOT NULL DEFAULT 1,
	UNIQUE (master)
);

CREATE TABLE IF NOT EXISTS meta_message (
	id         BIGSERIAL PRIMARY KEY,
	community  BIGINT NOT NULL REFERENCES community(id),
	name       TEXT NOT NULL,
	priority   INT NOT NULL DEFAULT 128,
	direction  INT NOT NULL DEFAULT 0,
	UNIQUE (community, name)
);

CREATE TABLE IF NOT EXISTS sync (
	id           BIGSERIAL PRIMARY KEY,
	community    BIGINT NOT NULL REFERENCES community(id),
	member       BIGINT NOT NULL REFERENCES member(id),
	global_time  BIGINT NOT NULL,
	meta_message BIGINT NOT NULL REFERENCES meta_message(id),
	undone       BIGINT NOT NULL DEFAULT 0,
	packet       BYTEA NOT NULL,
	sequence     BIGINT,
	UNIQUE (community, member, global_time)
);
CREATE INDEX IF NOT EXISTS sync_meta_undone_gt_idx ON sync (meta_message, undone, global_time);
CREATE INDEX IF NOT EXISTS sync_meta_member_idx ON sync (meta_message, member);

CREATE TABLE IF NOT EXISTS double_signed_sync (
	sync    BIGINT NOT NULL REFERENCES sync(id),
	member1 BIGINT NOT NULL REFERENCES member(id),
	member2 BIGINT NOT NULL REFERENCES member(id),
	PRIMARY KEY (sync)
);
CREATE INDEX IF NOT EXISTS double_signed_members_idx ON double_signed_sync (member1, member2);

CREATE TABLE IF NOT EXISTS option (
	key   TEXT PRIMARY KEY,
	value BYTEA NOT NULL
);
`
