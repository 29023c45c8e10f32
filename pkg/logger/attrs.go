package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}

	hn, _ := os.Hostname()
	uid := uuid.New().String()[:8]
	return hn + "-" + uid
}

func commonAttr(cfg Config) []slog.Attr {
	return []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now()),
	}
}

// Keys shared by every component so that one room or connection can be
// followed across packages.
const (
	KeyRoom        = "room"
	KeyParticipant = "participant"
	KeyComponent   = "component"
)

func Room(id string) slog.Attr { return slog.String(KeyRoom, id) }

func Participant(id string) slog.Attr { return slog.String(KeyParticipant, id) }

func Err(err error) slog.Attr { return slog.Any("err", err) }

// Component returns l tagged with the component name; a nil l means the
// default logger.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String(KeyComponent, name))
}
