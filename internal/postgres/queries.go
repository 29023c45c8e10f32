package postgres

const schema = `
CREATE TABLE IF NOT EXISTS canvas_rooms (
	id               TEXT PRIMARY KEY,
	created_at       TIMESTAMPTZ NOT NULL,
	last_activity_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS canvas_rooms_last_activity_idx ON canvas_rooms (last_activity_at);

CREATE TABLE IF NOT EXISTS drawing_commands (
	seq        BIGSERIAL PRIMARY KEY,
	room_id    TEXT NOT NULL REFERENCES canvas_rooms (id) ON DELETE CASCADE,
	kind       TEXT NOT NULL,
	payload    JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS drawing_commands_room_idx ON drawing_commands (room_id, seq);
`

// upsertRoom also takes the row lock, so concurrent writers of one room
// queue up behind each other for the rest of their transaction.
const upsertRoom = `
	INSERT INTO canvas_rooms (id, created_at, last_activity_at)
	VALUES ($1, $2, $2)
	ON CONFLICT (id) DO UPDATE SET last_activity_at = EXCLUDED.last_activity_at
	RETURNING created_at, (xmax = 0) AS inserted`

const lastCommandAt = `SELECT max(created_at) FROM drawing_commands WHERE room_id = $1`

const insertCommand = `
	INSERT INTO drawing_commands (room_id, kind, payload, created_at)
	VALUES ($1, $2, $3::jsonb, $4)`

const deleteCommands = `DELETE FROM drawing_commands WHERE room_id = $1`

const selectCommands = `
	SELECT kind, payload::text, created_at
	FROM drawing_commands
	WHERE room_id = $1
	ORDER BY created_at ASC, seq ASC`

const countCommands = `SELECT count(*) FROM drawing_commands WHERE room_id = $1`

const selectRoom = `
	SELECT r.id, r.created_at, r.last_activity_at,
	       (SELECT count(*) FROM drawing_commands d WHERE d.room_id = r.id)
	FROM canvas_rooms r
	WHERE r.id = $1`

const deleteIdleRooms = `DELETE FROM canvas_rooms WHERE last_activity_at < $1`
