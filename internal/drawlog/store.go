// Package drawlog defines the durable, append-only drawing history of rooms.
//
// A Store owns persistence and pruning only. Callers serialise writes for a
// single room; implementations still make Clear atomic on their own so that
// a truncate never interleaves with another append at the storage level.
package drawlog

import (
	"context"
	"fmt"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
)

type Store interface {
	// Append stores a stroke after every earlier command of the room and
	// returns it with the server-assigned timestamp. A missing room record
	// is created. Resends are not deduplicated.
	Append(ctx context.Context, roomID string, cmd domain.DrawingCommand) (domain.DrawingCommand, error)
	// Clear replaces the whole history of the room with a single clear command.
	Clear(ctx context.Context, roomID string) (domain.DrawingCommand, error)
	// ReadAll returns the ordered history; empty, never nil, when there is none.
	ReadAll(ctx context.Context, roomID string) ([]domain.DrawingCommand, error)
	// Touch creates the room if absent, otherwise refreshes its activity time.
	Touch(ctx context.Context, roomID string) (domain.Room, error)
	// Get returns room metadata or domain.ErrRoomNotFound.
	Get(ctx context.Context, roomID string) (domain.Room, error)
	// DeleteOlderThan removes rooms whose last activity precedes cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Clock returns the current time. Stores take one so tests can pin time.
type Clock func() time.Time

// SystemClock is microsecond precise, which is what every backend can
// round-trip without loss.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// NextTimestamp keeps a room's timestamps non-decreasing when the wall
// clock steps backwards between two appends.
func NextTimestamp(now, last time.Time) time.Time {
	if now.Before(last) {
		return last
	}
	return now
}

type Settings struct {
	Clock Clock
}

type Option func(*Settings)

func WithClock(c Clock) Option {
	return func(s *Settings) {
		if c != nil {
			s.Clock = c
		}
	}
}

func Apply(opts []Option) Settings {
	s := Settings{Clock: SystemClock}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// CheckAppend rejects anything Append must not store. Clears go through
// Store.Clear so that history is truncated with them.
func CheckAppend(roomID string, cmd domain.DrawingCommand) error {
	if roomID == "" {
		return domain.ErrInvalidRoomCode
	}
	if cmd.Type != domain.CommandStroke {
		return fmt.Errorf("%w: append accepts strokes only, got %q", domain.ErrInvalidCommand, cmd.Type)
	}
	return cmd.Validate()
}
