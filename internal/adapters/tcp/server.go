package tcp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/alitto/pond"
	"github.com/rs/zerolog"

	"netauction-server/internal/app"
	"netauction-server/internal/config"
)

// Server accepts TCP (optionally TLS) connections and hands each one to a
// bounded worker pool; the pool size caps the number of concurrently served
// clients.
type Server struct {
	cfg        *config.Config
	dispatcher *app.Dispatcher
	logger     zerolog.Logger

	listener net.Listener
	pool     *pond.WorkerPool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
}

type ServerParams struct {
	Config     *config.Config
	Dispatcher *app.Dispatcher
	Logger     zerolog.Logger
}

func NewServer(params ServerParams) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        params.Config,
		dispatcher: params.Dispatcher,
		logger:     params.Logger.With().Str("component", "tcp_server").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start binds the listener and begins accepting. It returns once the accept
// loop is running; a failed bind is fatal to the caller.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	listener, err := s.listen()
	if err != nil {
		return err
	}
	s.listener = listener

	maxClients := s.cfg.Server.MaxClients
	s.pool = pond.New(
		maxClients,
		maxClients*2,
		pond.Context(s.ctx),
		pond.Strategy(pond.Balanced()),
	)

	s.started = true
	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info().
		Str("addr", s.cfg.Server.Addr()).
		Bool("tls", s.cfg.TLS.Enabled).
		Int("max_clients", maxClients).
		Msg("Server listening")
	return nil
}

func (s *Server) listen() (net.Listener, error) {
	addr := s.cfg.Server.Addr()

	if !s.cfg.TLS.Enabled {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
		}
		return listener, nil
	}

	cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	listener, err := tls.Listen("tcp", addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s with TLS: %w", addr, err)
	}
	return listener, nil
}

// Addr returns the bound listener address, useful when the port was 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("Accept failed")
			continue
		}

		client := NewClient(ClientParams{
			Conn:       conn,
			Dispatcher: s.dispatcher,
			Logger:     s.logger,
		})

		// When the pool is saturated the accepted connection waits in the
		// pool's queue rather than being served.
		s.pool.Submit(func() {
			client.Run(s.ctx)
		})
	}
}

// Stop closes the listener and waits for in-flight connections to drain.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping server...")
	s.cancel()
	s.listener.Close()
	s.wg.Wait()
	if s.pool != nil {
		s.pool.Stop()
	}
	s.logger.Info().Msg("Server stopped")
}
