// Package badgerdb keeps room drawing logs in an embedded BadgerDB.
//
// Layout:
//
//	room:{roomId}            -> roomRecord (JSON)
//	cmd:{roomId}:{seq:020d}  -> DrawingCommand (JSON, wire shape)
//
// The zero padded sequence makes a prefix scan return a room's commands in
// arrival order.
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
	"github.com/cwrk-planet/whiteboard-service/internal/drawlog"

	"github.com/dgraph-io/badger/v4"
)

const (
	roomPrefix = "room:"
	cmdPrefix  = "cmd:"
)

type Options struct {
	Dir      string
	InMemory bool
	Debug    bool
}

type roomRecord struct {
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	LastCommandAt  time.Time `json:"lastCommandAt"`
	NextSeq        uint64    `json:"nextSeq"`
	Count          int       `json:"count"`
}

type Store struct {
	db  *badger.DB
	now drawlog.Clock
	// mu serialises read-modify-write transactions so that concurrent
	// writers never fail with badger.ErrConflict.
	mu sync.Mutex
}

var _ drawlog.Store = (*Store)(nil)

func Open(o Options, opts ...drawlog.Option) (*Store, error) {
	options := badger.DefaultOptions(o.Dir)
	if o.InMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	}
	if o.Debug {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s := drawlog.Apply(opts)
	return &Store{db: db, now: s.Clock}, nil
}

func roomKey(roomID string) []byte {
	return []byte(roomPrefix + roomID)
}

func cmdRoomPrefix(roomID string) []byte {
	return []byte(cmdPrefix + roomID + ":")
}

func cmdKey(roomID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", cmdPrefix, roomID, seq))
}

func getRecord(txn *badger.Txn, roomID string) (roomRecord, bool, error) {
	item, err := txn.Get(roomKey(roomID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return roomRecord{}, false, nil
	}
	if err != nil {
		return roomRecord{}, false, err
	}
	var rec roomRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	return rec, err == nil, err
}

func setRecord(txn *badger.Txn, roomID string, rec roomRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(roomKey(roomID), b)
}

func setCommand(txn *badger.Txn, roomID string, seq uint64, cmd domain.DrawingCommand) error {
	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return txn.Set(cmdKey(roomID, seq), b)
}

// commandKeys lists the command keys of a room without loading values.
func commandKeys(txn *badger.Txn, roomID string) [][]byte {
	options := badger.DefaultIteratorOptions
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	prefix := cmdRoomPrefix(roomID)
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func (s *Store) Append(_ context.Context, roomID string, cmd domain.DrawingCommand) (domain.DrawingCommand, error) {
	if err := drawlog.CheckAppend(roomID, cmd); err != nil {
		return domain.DrawingCommand{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		now := s.now()
		rec, found, err := getRecord(txn, roomID)
		if err != nil {
			return err
		}
		if !found {
			rec = roomRecord{CreatedAt: now}
		}
		cmd.Timestamp = drawlog.NextTimestamp(now, rec.LastCommandAt)
		if err := setCommand(txn, roomID, rec.NextSeq, cmd); err != nil {
			return err
		}
		rec.NextSeq++
		rec.Count++
		rec.LastCommandAt = cmd.Timestamp
		rec.LastActivityAt = now
		return setRecord(txn, roomID, rec)
	})
	if err != nil {
		return domain.DrawingCommand{}, storeErr("append command", err)
	}
	return cmd, nil
}

func (s *Store) Clear(_ context.Context, roomID string) (domain.DrawingCommand, error) {
	if roomID == "" {
		return domain.DrawingCommand{}, domain.ErrInvalidRoomCode
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := domain.ClearCommand()
	err := s.db.Update(func(txn *badger.Txn) error {
		now := s.now()
		rec, found, err := getRecord(txn, roomID)
		if err != nil {
			return err
		}
		if !found {
			rec = roomRecord{CreatedAt: now}
		}
		for _, k := range commandKeys(txn, roomID) {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		cmd.Timestamp = drawlog.NextTimestamp(now, rec.LastCommandAt)
		if err := setCommand(txn, roomID, rec.NextSeq, cmd); err != nil {
			return err
		}
		rec.NextSeq++
		rec.Count = 1
		rec.LastCommandAt = cmd.Timestamp
		rec.LastActivityAt = now
		return setRecord(txn, roomID, rec)
	})
	if err != nil {
		return domain.DrawingCommand{}, storeErr("clear room", err)
	}
	return cmd, nil
}

func (s *Store) ReadAll(_ context.Context, roomID string) ([]domain.DrawingCommand, error) {
	out := make([]domain.DrawingCommand, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := cmdRoomPrefix(roomID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var cmd domain.DrawingCommand
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &cmd)
			})
			if err != nil {
				return err
			}
			out = append(out, cmd)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("read commands", err)
	}
	return out, nil
}

func (s *Store) Touch(_ context.Context, roomID string) (domain.Room, error) {
	if roomID == "" {
		return domain.Room{}, domain.ErrInvalidRoomCode
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var room domain.Room
	err := s.db.Update(func(txn *badger.Txn) error {
		now := s.now()
		rec, found, err := getRecord(txn, roomID)
		if err != nil {
			return err
		}
		if !found {
			rec = roomRecord{CreatedAt: now}
		}
		rec.LastActivityAt = now
		room = toRoom(roomID, rec)
		room.Created = !found
		return setRecord(txn, roomID, rec)
	})
	if err != nil {
		return domain.Room{}, storeErr("touch room", err)
	}
	return room, nil
}

func (s *Store) Get(_ context.Context, roomID string) (domain.Room, error) {
	var room domain.Room
	err := s.db.View(func(txn *badger.Txn) error {
		rec, found, err := getRecord(txn, roomID)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrRoomNotFound
		}
		room = toRoom(roomID, rec)
		return nil
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		return domain.Room{}, err
	}
	if err != nil {
		return domain.Room{}, storeErr("get room", err)
	}
	return room, nil
}

// DeleteOlderThan drops idle rooms and their commands with a WriteBatch,
// which is not bound by the transaction size limit.
func (s *Store) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys [][]byte
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(roomPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var rec roomRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if !rec.LastActivityAt.Before(cutoff) {
				continue
			}
			roomID := string(item.Key()[len(prefix):])
			keys = append(keys, item.KeyCopy(nil))
			keys = append(keys, commandKeys(txn, roomID)...)
			n++
		}
		return nil
	})
	if err != nil {
		return 0, storeErr("scan idle rooms", err)
	}
	if n == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, storeErr("delete idle rooms", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, storeErr("delete idle rooms", err)
	}
	return n, nil
}

func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database is closed")
	}
	return nil
}

func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

func toRoom(roomID string, rec roomRecord) domain.Room {
	return domain.Room{
		ID:             roomID,
		CreatedAt:      rec.CreatedAt,
		LastActivityAt: rec.LastActivityAt,
		DrawingCount:   rec.Count,
	}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStore, op, err)
}
