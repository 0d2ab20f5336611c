package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-studychat/internal/config"
	"github.com/npezzotti/go-studychat/internal/database"
	"github.com/npezzotti/go-studychat/internal/server"
)

type StudyChatApp struct {
	log            *log.Logger
	db             database.MessageStore
	srv            *http.Server
	cs             *server.ChatServer
	signingKey     []byte
	allowedOrigins []string
}

func NewStudyChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.MessageStore,
	cfg *config.Config) *StudyChatApp {
	s := &StudyChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.Handle("POST /api/conversations", s.authMiddleware(s.startConversation))
	mux.Handle("GET /api/conversations/{id}/messages", s.authMiddleware(s.getConversationMessages))
	mux.Handle("POST /api/conversations/{id}/messages", s.authMiddleware(s.postConversationMessage))
	mux.Handle("GET /api/rooms/{id}/messages", s.authMiddleware(s.getRoomMessages))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *StudyChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *StudyChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
