// Package sqlite keeps room drawing logs in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
	"github.com/cwrk-planet/whiteboard-service/internal/drawlog"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

// Store wraps the SQLite handle. Times are kept as unix microseconds.
type Store struct {
	db  *sql.DB
	now drawlog.Clock
}

var _ drawlog.Store = (*Store)(nil)

// NewStore opens the database at path. Call Migrate before use and Close
// when done.
func NewStore(path string, opts ...drawlog.Option) (*Store, error) {
	if path == "" {
		path = "whiteboard.db"
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, err
	}
	// one writer at a time; transactions queue on the pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := drawlog.Apply(opts)
	return &Store{db: db, now: s.Clock}, nil
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d&_pragma=foreign_keys=ON", path, separator, defaultBusyTimeout)
}

func (s *Store) Migrate(ctx context.Context) (err error) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS canvas_rooms (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			last_activity_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS canvas_rooms_last_activity_idx ON canvas_rooms(last_activity_at);`,
		`CREATE TABLE IF NOT EXISTS drawing_commands (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY(room_id) REFERENCES canvas_rooms(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS drawing_commands_room_idx ON drawing_commands(room_id, seq);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Append(ctx context.Context, roomID string, cmd domain.DrawingCommand) (domain.DrawingCommand, error) {
	if err := drawlog.CheckAppend(roomID, cmd); err != nil {
		return domain.DrawingCommand{}, err
	}
	payload, err := cmd.Payload()
	if err != nil {
		return domain.DrawingCommand{}, err
	}
	at, err := s.write(ctx, roomID, func(tx *sql.Tx, at time.Time) error {
		return insertCommand(ctx, tx, roomID, cmd.Type, payload, at)
	})
	if err != nil {
		return domain.DrawingCommand{}, storeErr("append command", err)
	}
	cmd.Timestamp = at
	return cmd, nil
}

func (s *Store) Clear(ctx context.Context, roomID string) (domain.DrawingCommand, error) {
	if roomID == "" {
		return domain.DrawingCommand{}, domain.ErrInvalidRoomCode
	}
	cmd := domain.ClearCommand()
	at, err := s.write(ctx, roomID, func(tx *sql.Tx, at time.Time) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM drawing_commands WHERE room_id = ?`, roomID); err != nil {
			return err
		}
		return insertCommand(ctx, tx, roomID, cmd.Type, []byte("{}"), at)
	})
	if err != nil {
		return domain.DrawingCommand{}, storeErr("clear room", err)
	}
	cmd.Timestamp = at
	return cmd, nil
}

func insertCommand(ctx context.Context, tx *sql.Tx, roomID string, kind domain.CommandType, payload []byte, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO drawing_commands(room_id, kind, payload, created_at) VALUES(?, ?, ?, ?)`,
		roomID, string(kind), string(payload), at.UnixMicro())
	return err
}

func (s *Store) write(ctx context.Context, roomID string, fn func(tx *sql.Tx, at time.Time) error) (_ time.Time, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return time.Time{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now()
	if _, err = upsertRoom(ctx, tx, roomID, now); err != nil {
		return time.Time{}, err
	}
	var last sql.NullInt64
	if err = tx.QueryRowContext(ctx,
		`SELECT max(created_at) FROM drawing_commands WHERE room_id = ?`, roomID).Scan(&last); err != nil {
		return time.Time{}, err
	}
	at := now
	if last.Valid {
		at = drawlog.NextTimestamp(now, fromMicros(last.Int64))
	}
	if err = fn(tx, at); err != nil {
		return time.Time{}, err
	}
	if err = tx.Commit(); err != nil {
		return time.Time{}, err
	}
	return at, nil
}

// upsertRoom reports whether the room row was created.
func upsertRoom(ctx context.Context, tx *sql.Tx, roomID string, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE canvas_rooms SET last_activity_at = ? WHERE id = ?`, now.UnixMicro(), roomID)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n > 0 {
		return false, nil
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO canvas_rooms(id, created_at, last_activity_at) VALUES(?, ?, ?)`,
		roomID, now.UnixMicro(), now.UnixMicro())
	return err == nil, err
}

func (s *Store) ReadAll(ctx context.Context, roomID string) ([]domain.DrawingCommand, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, payload, created_at FROM drawing_commands WHERE room_id = ? ORDER BY created_at ASC, seq ASC`,
		roomID)
	if err != nil {
		return nil, storeErr("read commands", err)
	}
	defer rows.Close()

	out := make([]domain.DrawingCommand, 0)
	for rows.Next() {
		var (
			kind, payload string
			at            int64
		)
		if err := rows.Scan(&kind, &payload, &at); err != nil {
			return nil, storeErr("scan command", err)
		}
		cmd, err := domain.DecodeCommand(domain.CommandType(kind), []byte(payload), fromMicros(at))
		if err != nil {
			return nil, storeErr("decode command", err)
		}
		out = append(out, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read commands", err)
	}
	return out, nil
}

func (s *Store) Touch(ctx context.Context, roomID string) (_ domain.Room, err error) {
	if roomID == "" {
		return domain.Room{}, domain.ErrInvalidRoomCode
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Room{}, storeErr("touch room", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	created, err := upsertRoom(ctx, tx, roomID, s.now())
	if err != nil {
		return domain.Room{}, storeErr("touch room", err)
	}
	room, err := getRoom(ctx, tx, roomID)
	if err != nil {
		return domain.Room{}, storeErr("touch room", err)
	}
	if err = tx.Commit(); err != nil {
		return domain.Room{}, storeErr("touch room", err)
	}
	room.Created = created
	return room, nil
}

func (s *Store) Get(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := getRoom(ctx, s.db, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return domain.Room{}, err
		}
		return domain.Room{}, storeErr("get room", err)
	}
	return room, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRoom(ctx context.Context, q queryer, roomID string) (domain.Room, error) {
	var (
		room                domain.Room
		createdAt, activeAt int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT r.id, r.created_at, r.last_activity_at,
		       (SELECT count(*) FROM drawing_commands d WHERE d.room_id = r.id)
		FROM canvas_rooms r WHERE r.id = ?`, roomID).
		Scan(&room.ID, &createdAt, &activeAt, &room.DrawingCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, err
	}
	room.CreatedAt = fromMicros(createdAt)
	room.LastActivityAt = fromMicros(activeAt)
	return room, nil
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM canvas_rooms WHERE last_activity_at < ?`, cutoff.UnixMicro())
	if err != nil {
		return 0, storeErr("delete idle rooms", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("delete idle rooms", err)
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStore, op, err)
}
