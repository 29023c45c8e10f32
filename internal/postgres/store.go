// Package postgres keeps room drawing logs in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
	"github.com/cwrk-planet/whiteboard-service/internal/drawlog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db    *pgxpool.Pool
	now   drawlog.Clock
	owned bool
}

var _ drawlog.Store = (*Store)(nil)

// New wraps an existing pool. The caller keeps ownership of it.
func New(db *pgxpool.Pool, opts ...drawlog.Option) *Store {
	s := drawlog.Apply(opts)
	return &Store{db: db, now: s.Clock}
}

// Open dials PostgreSQL, applies the schema and returns a store that closes
// the pool on Close.
func Open(ctx context.Context, cfg Config, opts ...drawlog.Option) (*Store, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	s := New(pool, opts...)
	s.owned = true
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, roomID string, cmd domain.DrawingCommand) (domain.DrawingCommand, error) {
	if err := drawlog.CheckAppend(roomID, cmd); err != nil {
		return domain.DrawingCommand{}, err
	}
	payload, err := cmd.Payload()
	if err != nil {
		return domain.DrawingCommand{}, err
	}

	out, err := s.write(ctx, roomID, func(tx pgx.Tx, at time.Time) error {
		_, err := tx.Exec(ctx, insertCommand, roomID, string(cmd.Type), string(payload), at)
		return err
	})
	if err != nil {
		return domain.DrawingCommand{}, storeErr("append command", err)
	}
	cmd.Timestamp = out
	return cmd, nil
}

func (s *Store) Clear(ctx context.Context, roomID string) (domain.DrawingCommand, error) {
	if roomID == "" {
		return domain.DrawingCommand{}, domain.ErrInvalidRoomCode
	}
	cmd := domain.ClearCommand()
	at, err := s.write(ctx, roomID, func(tx pgx.Tx, at time.Time) error {
		if _, err := tx.Exec(ctx, deleteCommands, roomID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertCommand, roomID, string(cmd.Type), "{}", at)
		return err
	})
	if err != nil {
		return domain.DrawingCommand{}, storeErr("clear room", err)
	}
	cmd.Timestamp = at
	return cmd, nil
}

// write runs fn in a transaction holding the room row lock and hands it the
// timestamp for the next command of the room.
func (s *Store) write(ctx context.Context, roomID string, fn func(tx pgx.Tx, at time.Time) error) (time.Time, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback(ctx)

	now := s.now()
	var (
		createdAt time.Time
		inserted  bool
	)
	if err := tx.QueryRow(ctx, upsertRoom, roomID, now).Scan(&createdAt, &inserted); err != nil {
		return time.Time{}, err
	}

	var last *time.Time
	if err := tx.QueryRow(ctx, lastCommandAt, roomID).Scan(&last); err != nil {
		return time.Time{}, err
	}
	at := now
	if last != nil {
		at = drawlog.NextTimestamp(now, last.UTC())
	}

	if err := fn(tx, at); err != nil {
		return time.Time{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, err
	}
	return at, nil
}

func (s *Store) ReadAll(ctx context.Context, roomID string) ([]domain.DrawingCommand, error) {
	rows, err := s.db.Query(ctx, selectCommands, roomID)
	if err != nil {
		return nil, storeErr("read commands", err)
	}
	defer rows.Close()

	out := make([]domain.DrawingCommand, 0)
	for rows.Next() {
		var (
			kind    string
			payload string
			at      time.Time
		)
		if err := rows.Scan(&kind, &payload, &at); err != nil {
			return nil, storeErr("scan command", err)
		}
		cmd, err := domain.DecodeCommand(domain.CommandType(kind), []byte(payload), at.UTC())
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

func (s *Store) Touch(ctx context.Context, roomID string) (domain.Room, error) {
	if roomID == "" {
		return domain.Room{}, domain.ErrInvalidRoomCode
	}
	now := s.now()
	room := domain.Room{ID: roomID, LastActivityAt: now}
	if err := s.db.QueryRow(ctx, upsertRoom, roomID, now).Scan(&room.CreatedAt, &room.Created); err != nil {
		return domain.Room{}, storeErr("touch room", err)
	}
	room.CreatedAt = room.CreatedAt.UTC()
	if err := s.db.QueryRow(ctx, countCommands, roomID).Scan(&room.DrawingCount); err != nil {
		return domain.Room{}, storeErr("count commands", err)
	}
	return room, nil
}

func (s *Store) Get(ctx context.Context, roomID string) (domain.Room, error) {
	var room domain.Room
	err := s.db.QueryRow(ctx, selectRoom, roomID).
		Scan(&room.ID, &room.CreatedAt, &room.LastActivityAt, &room.DrawingCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, storeErr("get room", err)
	}
	room.CreatedAt = room.CreatedAt.UTC()
	room.LastActivityAt = room.LastActivityAt.UTC()
	return room, nil
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteIdleRooms, cutoff)
	if err != nil {
		return 0, storeErr("delete idle rooms", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return Ping(ctx, s.db)
}

func (s *Store) Close() error {
	if s.owned {
		s.db.Close()
	}
	return nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStore, op, err)
}
