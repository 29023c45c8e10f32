package domain

import "time"

// Participant is one live connection. It is never persisted.
type Participant struct {
	ID          string
	CurrentRoom string
	LastCursor  *Point
	LastSeenAt  time.Time
}

func (p *Participant) Joined() bool { return p.CurrentRoom != "" }
