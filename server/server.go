package server

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/signadot/sessiond/api"
	"github.com/signadot/sessiond/registry"
)

// Server represents the sessiond server.
type Server struct {
	Spec Spec

	// Hub fans broadcast events out to connected clients
	Hub *BroadcastHub

	// TCP listener for the session protocol
	tcpListener *TCPListener

	// Eviction scheduler
	sweeper *Sweeper

	id        string
	startedAt time.Time
}

// New creates a new Server instance.
func New(spec *Spec) *Server {
	if spec.Log == nil {
		spec.Log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slogLevel(),
		}))
	}
	if spec.Config == nil {
		spec.Config = DefaultConfig()
	}
	if spec.Registry == nil {
		spec.Registry = registry.New()
	}

	s := &Server{
		Spec: *spec,
		Hub:  NewBroadcastHubWithTimeout(spec.Log, spec.Config.BroadcastTimeout),
		id:   uuid.NewString(),
	}
	return s
}

func slogLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Start restores checkpointed sessions, starts the TCP listener, and
// launches the idle sweeper. A restore failure is logged and the server
// comes up with an empty registry; only a listener bind failure is fatal.
func (s *Server) Start() error {
	s.startedAt = time.Now()

	if s.Spec.Store != nil {
		sessions, err := s.Spec.Store.LoadAll()
		if err != nil {
			s.Spec.Log.Error("could not restore sessions, starting empty", "error", err)
		} else {
			s.Spec.Registry.Seed(sessions)
			if len(sessions) > 0 {
				s.Spec.Log.Info("restored sessions", "count", len(sessions))
			}
		}
	}

	if err := s.StartTCP(s.Spec.Config.Addr); err != nil {
		return err
	}

	s.sweeper = NewSweeper(&SweeperConfig{
		Registry: s.Spec.Registry,
		Store:    s.Spec.Store,
		Hub:      s.Hub,
		Log:      s.Spec.Log,
		Interval: s.Spec.Config.SweepInterval,
		Timeout:  s.Spec.Config.IdleTimeout,
	})
	s.sweeper.Start()

	return nil
}

// Stop halts the sweeper and listener, then flushes live sessions to the
// store so a restart can pick them up.
func (s *Server) Stop() error {
	if s.sweeper != nil {
		s.sweeper.Stop()
		s.sweeper = nil
	}
	if err := s.StopTCP(); err != nil {
		return err
	}
	if s.Spec.Store != nil {
		if err := s.Spec.Store.SaveAll(s.Spec.Registry.ListAll()); err != nil {
			return fmt.Errorf("flushing sessions: %w", err)
		}
	}
	return nil
}

// StartTCP starts the TCP listener on the given address.
// The listener runs in a separate goroutine.
func (s *Server) StartTCP(addr string) error {
	if s.tcpListener != nil {
		return fmt.Errorf("TCP listener already running")
	}

	listener, err := NewTCPListener(addr, s, s.Hub)
	if err != nil {
		return err
	}

	s.tcpListener = listener

	go func() {
		if err := listener.Serve(); err != nil {
			s.Spec.Log.Error("TCP listener error", "error", err)
		}
	}()

	return nil
}

// StopTCP stops the TCP listener.
func (s *Server) StopTCP() error {
	if s.tcpListener == nil {
		return nil
	}

	err := s.tcpListener.Close()
	s.tcpListener = nil
	return err
}

// TCPAddr returns the TCP listener's address, or "" if not running.
func (s *Server) TCPAddr() string {
	if s.tcpListener == nil {
		return ""
	}
	return s.tcpListener.Addr().String()
}

// Status reports server identity and live counters.
func (s *Server) Status() *api.StatusData {
	return &api.StatusData{
		Type:          api.TypeStatusData,
		ServerID:      s.id,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		SessionCount:  s.Spec.Registry.Count(),
		ClientCount:   s.Hub.ClientCount(),
	}
}
