package mirror

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server hosts the observer endpoint at /ws on a local address.
type Server struct {
	hub    *Hub
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

func NewServer(addr, token string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	hub := NewHub(token, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWebSocket)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Server{
		hub:    hub,
		srv:    &http.Server{Handler: mux},
		ln:     ln,
		logger: logger,
	}, nil
}

func (s *Server) Hub() *Hub { return s.hub }

// Addr returns the bound address, useful when the configured port is 0.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
	go func() {
		if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("mirror server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("mirror listening", "addr", s.Addr())
}
