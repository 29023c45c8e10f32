package http

import (
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/whiteboard-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Handler        *Handler
	WS             http.HandlerFunc
	AllowedOrigins []string
	Log            *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging(d.Log))

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:         300,
	}))

	// health
	r.Get("/health", d.Handler.Health)
	r.Get("/healthz", d.Handler.Healthz)

	if d.WS != nil {
		r.Get("/ws", d.WS)
	}

	r.Route("/api/rooms", func(rt chi.Router) {
		rt.Post("/join", d.Handler.JoinRoom)
		rt.Route("/{roomId}", func(rr chi.Router) {
			rr.Get("/", d.Handler.GetRoom)
			rr.Get("/export.pdf", d.Handler.ExportPDF)
		})
	})

	return r
}
