package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/whiteboard-service/internal/session"
	"github.com/cwrk-planet/whiteboard-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Coordinator is the part of session.Coordinator the socket layer drives.
// It has to be built with session.WithSink(hub): the results of Handle and
// Disconnect are already on their way to the sockets and are not resent.
type Coordinator interface {
	Connect(participantID string)
	Handle(ctx context.Context, participantID string, ev session.ClientEvent) []session.Outbound
	Disconnect(ctx context.Context, participantID string) []session.Outbound
}

type Options struct {
	// AllowedOrigins lists accepted Origin headers; "*" accepts any.
	AllowedOrigins []string
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func (o *Options) defaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 1 << 20
	}
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	coord    Coordinator
	opts     Options
	log      *slog.Logger

	pingEvery time.Duration
}

func NewServer(hub *Hub, coord Coordinator, log *slog.Logger, opts Options) *Server {
	opts.defaults()
	s := &Server{
		hub:       hub,
		coord:     coord,
		opts:      opts,
		log:       logger.Component(log, "ws"),
		pingEvery: opts.PongWait * 9 / 10,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	return lo.Contains(s.opts.AllowedOrigins, "*") || lo.Contains(s.opts.AllowedOrigins, origin)
}

// HandleWS upgrades GET /ws. Every connection gets a fresh participant id,
// announced to the client in a welcome event.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		s.log.Warn("ws upgrade failed", logger.Err(err))
		return
	}

	// outlives the handler's request on hijacked connections
	ctx := context.WithoutCancel(r.Context())
	c := newClient(uuid.NewString(), conn, s.opts.SendBuffer)
	log := s.log.With(logger.Participant(c.id))

	s.hub.add(c)
	s.coord.Connect(c.id)
	s.hub.Deliver([]session.Outbound{{To: []string{c.id}, Event: session.Welcome{ParticipantID: c.id}}})
	log.Debug("ws connected", slog.String("remote", r.RemoteAddr))

	go s.writeLoop(c)
	s.readLoop(ctx, log, c)

	s.hub.remove(c)
	s.coord.Disconnect(ctx, c.id)
	c.close()
	log.Debug("ws disconnected")
}

func (s *Server) readLoop(ctx context.Context, log *slog.Logger, c *client) {
	c.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("ws read failed", logger.Err(err))
			}
			return
		}
		ev, err := Decode(data)
		if err != nil {
			log.Debug("ws frame dropped", logger.Err(err))
			continue
		}
		s.coord.Handle(ctx, c.id, ev)
	}
}

func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
