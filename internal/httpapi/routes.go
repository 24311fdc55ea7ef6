package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/housie-backend/internal/archive"
	"github.com/DoyleJ11/housie-backend/internal/auth"
	"github.com/DoyleJ11/housie-backend/internal/engine"
	"github.com/DoyleJ11/housie-backend/internal/hub"
	"github.com/DoyleJ11/housie-backend/internal/ws"
)

type Deps struct {
	Gate           *auth.Gate
	Rules          engine.Rules
	Log            *zap.Logger
	OriginPatterns []string
	Results        archive.Store
}

func SetupRoutes(h *hub.Hub, d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Results == nil {
		d.Results = archive.Nop{}
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Log))

	// Public routes
	r.Post("/lobbies", CreateLobby(h, d.Rules, d.Log))
	r.Get("/lobbies/{code}/state", LobbyState(h))
	r.Get("/lobbies/{code}/results", RecentResults(d.Results, d.Log))
	r.Get("/tickets", ListTickets)
	r.Get("/tickets/{serial}", GetTicket)
	r.Get("/prizes", ListPrizes)
	r.Post("/host-login", HostLogin(d.Gate))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, ws.Options{Gate: d.Gate, Log: d.Log, OriginPatterns: d.OriginPatterns}))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)))
		})
	}
}
