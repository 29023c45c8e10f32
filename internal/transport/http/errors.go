package http

import (
	"errors"
	"net/http"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
)

// toHTTP maps domain errors onto a status and a message that is safe to
// show to clients.
func toHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRoomCode):
		return http.StatusBadRequest, "invalid room code"
	case errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound, "room not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
