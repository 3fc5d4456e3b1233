package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"netauction-server/internal/app"
	"netauction-server/internal/config"
)

// Server exposes the protocol over WebSocket at /ws as a secondary transport
// next to the TCP listener.
type Server struct {
	cfg        *config.Config
	dispatcher *app.Dispatcher
	upgrader   websocket.Upgrader
	httpServer *http.Server
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type ServerParams struct {
	Config     *config.Config
	Dispatcher *app.Dispatcher
	Logger     zerolog.Logger
}

func NewServer(params ServerParams) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:        params.Config,
		dispatcher: params.Dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  params.Config.WebSocket.ReadBufferSize,
			WriteBufferSize: params.Config.WebSocket.WriteBufferSize,
		},
		logger: params.Logger.With().Str("component", "ws_server").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", params.Config.Server.Host, params.Config.WebSocket.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Minute,
	}

	return s
}

// Start runs the HTTP listener. It blocks; run it on its own goroutine.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("WebSocket server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	return nil
}

// Stop gracefully stops the WebSocket server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping WebSocket server...")
	s.cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown WebSocket server: %w", err)
	}

	s.logger.Info().Msg("WebSocket server stopped")
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Upgrade failed")
		return
	}

	client := NewClient(ClientParams{
		Conn:       conn,
		Dispatcher: s.dispatcher,
		Logger:     s.logger,
	})

	go client.Run(s.ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok", "service": "netauction"}`))
}
