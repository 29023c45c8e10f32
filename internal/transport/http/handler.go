package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/domain"
	"github.com/cwrk-planet/whiteboard-service/internal/service"
	"github.com/cwrk-planet/whiteboard-service/pkg/httputil"
	"github.com/cwrk-planet/whiteboard-service/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type RoomService interface {
	Join(ctx context.Context, code string) (service.JoinResult, error)
	Get(ctx context.Context, code string) (service.RoomDetails, error)
	ExportPDF(ctx context.Context, code string, w io.Writer) error
}

type Handler struct {
	rooms    RoomService
	ping     func(ctx context.Context) error
	validate *validator.Validate
	log      *slog.Logger
	now      func() time.Time
}

// NewHandler wires the room endpoints. ping backs /healthz and may be nil.
func NewHandler(rooms RoomService, ping func(ctx context.Context) error, log *slog.Logger) *Handler {
	return &Handler{
		rooms:    rooms,
		ping:     ping,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.Component(log, "http"),
		now:      time.Now,
	}
}

// maxJoinBody bounds the join request; a room code fits many times over.
const maxJoinBody = 4 << 10

// POST /api/rooms/join
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJoinBody)

	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "roomId is required")
		return
	}

	res, err := h.rooms.Join(r.Context(), req.RoomID)
	if err != nil {
		h.fail(w, r, "handler.JoinRoom", err)
		return
	}
	httputil.OK(w, JoinRoomResponse{
		RoomID:       res.RoomID,
		CreatedAt:    res.CreatedAt,
		DrawingCount: res.DrawingCount,
	})
}

// GET /api/rooms/{roomId}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.Get(r.Context(), chi.URLParam(r, "roomId"))
	if err != nil {
		h.fail(w, r, "handler.GetRoom", err)
		return
	}
	httputil.OK(w, RoomResponse{
		RoomID:       room.RoomID,
		CreatedAt:    room.CreatedAt,
		LastActivity: room.LastActivity,
		DrawingData:  room.DrawingData,
		ActiveUsers:  room.ActiveUsers,
	})
}

// GET /api/rooms/{roomId}/export.pdf
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "roomId")

	// rendered fully before the first byte so errors still get a status
	var buf bytes.Buffer
	if err := h.rooms.ExportPDF(r.Context(), code, &buf); err != nil {
		h.fail(w, r, "handler.ExportPDF", err)
		return
	}
	roomID, _ := domain.NormalizeRoomCode(code)

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="whiteboard-`+roomID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// GET /health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, HealthResponse{Status: "OK", Timestamp: h.now().UTC()})
}

// GET /healthz answers 503 while the drawing log is unreachable.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			h.log.Warn("health check failed", logger.Err(err))
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := toHTTP(err)
	if status >= http.StatusInternalServerError {
		reqID, _ := httputil.FromContext(r.Context())
		h.log.Error(op, slog.String("req_id", reqID), logger.Err(err))
	}
	httputil.Error(w, status, msg)
}
