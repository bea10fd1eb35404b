// Package app hosts the chat HTTP/WebSocket process: the transport
// boundary over the connection registry, session handlers, router, and
// presence broadcaster, plus the REST surface for history and accounts.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/chatdeck/chatdeck/internal/api"
	"github.com/chatdeck/chatdeck/internal/platform/timeouts"
	"github.com/chatdeck/chatdeck/internal/presence"
	"github.com/chatdeck/chatdeck/internal/registry"
	"github.com/chatdeck/chatdeck/internal/router"
	"github.com/chatdeck/chatdeck/internal/session"
	"github.com/chatdeck/chatdeck/internal/storage/sqlite"
	"github.com/chatdeck/chatdeck/internal/token"
)

// Config defines the inputs for the chat process.
type Config struct {
	HTTPAddr          string
	DBPath            string
	TokenSecret       string
	TokenIssuer       string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the chat HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *sqlite.Store
}

// sessionFactory binds a fresh session handler to each accepted
// connection.
type sessionFactory struct {
	registry *registry.Registry
	tokens   session.TokenVerifier
	router   *router.Router
	presence *presence.Broadcaster
}

func (f *sessionFactory) newHandler(connectionID string) *session.Handler {
	return session.NewHandler(connectionID, f.registry, f.tokens, f.router, f.presence)
}

// NewServer builds a configured chat server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.TokenSecret) == "" {
		return nil, errors.New("token secret is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	store, err := sqlite.Open(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tokens, err := token.NewService(token.Config{
		Secret:     config.TokenSecret,
		Issuer:     config.TokenIssuer,
		AccessTTL:  config.AccessTokenTTL,
		RefreshTTL: config.RefreshTokenTTL,
	}, store)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init token service: %w", err)
	}

	reg := registry.New()
	hub := newHub()
	broadcaster := presence.NewBroadcaster(reg, hub, store)
	sessions := &sessionFactory{
		registry: reg,
		tokens:   tokens,
		router:   router.New(hub, store),
		presence: broadcaster,
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(hub, sessions, tokens, store, broadcaster),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
	}, nil
}

func newHandler(hub *hub, sessions *sessionFactory, tokens *token.Service, store *sqlite.Store, broadcaster *presence.Broadcaster) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, hub, sessions)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	mux.Handle("/api/", api.NewHandler(api.Deps{
		Tokens:   tokens,
		Users:    store,
		Messages: store,
		Rooms:    store,
		Presence: broadcaster,
	}))

	return mux
}

// Run creates and serves a chat server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init chat server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve chat: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("chat server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("chat server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}
}
