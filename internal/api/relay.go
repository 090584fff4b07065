package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/jmcateer/chatrelay/internal/config"
	"github.com/jmcateer/chatrelay/internal/database"
	"github.com/jmcateer/chatrelay/internal/relay"
)

// RelayApp serves the relay's command surface over HTTP. It only moves the
// caller's bearer credential from the request into the call, authorization of
// each command happens inside the relay core.
type RelayApp struct {
	log   *log.Logger
	relay *relay.ChatRelay
	db    database.ChatRepository
	srv   *http.Server
}

func NewRelayApp(mux *http.ServeMux, logger *log.Logger, chatRelay *relay.ChatRelay, db database.ChatRepository, cfg *config.Config) *RelayApp {
	a := &RelayApp{
		log:   logger,
		relay: chatRelay,
		db:    db,
	}

	mux.HandleFunc("POST /api/join", a.withCredential(a.join))
	mux.HandleFunc("POST /api/leave", a.withCredential(a.leave))
	mux.HandleFunc("POST /api/post", a.withCredential(a.post))
	mux.HandleFunc("GET /api/drain", a.withCredential(a.drain))
	mux.HandleFunc("GET /api/connected-users", a.withCredential(a.connectedUsers))
	mux.HandleFunc("GET /api/help", a.withCredential(a.help))
	mux.HandleFunc("GET /api/about", a.withCredential(a.about))
	mux.HandleFunc("GET /healthz", a.healthCheck)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
	)(mux)

	h = a.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	a.srv = srv
	return a
}

func (a *RelayApp) Start() error {
	a.log.Printf("starting server on %s\n", a.srv.Addr)
	return a.srv.ListenAndServe()
}

func (a *RelayApp) Shutdown(ctx context.Context) error {
	a.log.Println("shutting down HTTP server...")
	if err := a.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
