package http

import (
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
)

type JoinRoomRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

type JoinRoomResponse struct {
	RoomID       string    `json:"roomId"`
	CreatedAt    time.Time `json:"createdAt"`
	DrawingCount int       `json:"drawingCount"`
}

type RoomResponse struct {
	RoomID       string                  `json:"roomId"`
	CreatedAt    time.Time               `json:"createdAt"`
	LastActivity time.Time               `json:"lastActivity"`
	DrawingData  []domain.DrawingCommand `json:"drawingData"`
	ActiveUsers  int                     `json:"activeUsers"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
