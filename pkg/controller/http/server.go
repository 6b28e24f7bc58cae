package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/prompter/pkg/domain/interfaces"
	"github.com/m-mizutani/prompter/pkg/usecase"
	"github.com/m-mizutani/prompter/pkg/utils/logging"
)

// Server is the local HTTP surface used by display clients and text
// producers (capture, speech). It is a thin adapter: all behavior lives
// in the usecase layer.
type Server struct {
	router   *chi.Mux
	chat     *usecase.Chat
	eventLog interfaces.EventLog
}

type Options func(*Server)

func New(chat *usecase.Chat, eventLog interfaces.EventLog, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:   r,
		chat:     chat,
		eventLog: eventLog,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", chatHandler(s.chat))

		r.Post("/events", recordEventHandler(s.chat))
		r.Get("/events/recent", recentEventsHandler(s.chat.Projector()))
		r.Get("/events/important", importantEventsHandler(s.chat.Projector()))
		r.Delete("/events", clearHandler(s.chat))

		r.Get("/history", historyHandler(s.chat.Projector()))
		r.Get("/context/{skill}", skillContextHandler(s.chat.Projector()))
		r.Get("/summary", summaryHandler(s.chat.Projector()))
		r.Get("/stats", statsHandler(s.eventLog))

		r.Post("/maintenance", maintenanceHandler(s.eventLog))
		r.Put("/settings", settingsHandler(s.chat))
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
