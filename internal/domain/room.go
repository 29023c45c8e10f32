package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	MinRoomCodeLen = 4
	MaxRoomCodeLen = 8
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Room is the durable part of a drawing room. Membership lives in memory only.
type Room struct {
	ID             string    `db:"id"`
	CreatedAt      time.Time `db:"created_at"`
	LastActivityAt time.Time `db:"last_activity_at"`
	DrawingCount   int       `db:"drawing_count"`

	// Created is set by Touch when the call brought the room into existence.
	Created bool `db:"-"`
}

// NormalizeRoomCode trims and upper-cases a user typed room code and checks
// that it is 4 to 8 ASCII letters or digits.
func NormalizeRoomCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if err := validate.Var(code, fmt.Sprintf("required,min=%d,max=%d,alphanum", MinRoomCodeLen, MaxRoomCodeLen)); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, raw)
	}
	return code, nil
}
