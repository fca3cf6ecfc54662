package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// TCPListener manages TCP connections for the session protocol.
type TCPListener struct {
	listener net.Listener
	server   *Server
	hub      *BroadcastHub

	// Connection management
	conns   map[string]*ClientConn
	connsMu sync.RWMutex

	// Shutdown
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewTCPListener creates a new TCP listener.
func NewTCPListener(addr string, server *Server, hub *BroadcastHub) (*TCPListener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return &TCPListener{
		listener: listener,
		server:   server,
		hub:      hub,
		conns:    make(map[string]*ClientConn),
		done:     make(chan struct{}),
	}, nil
}

// Addr returns the listener's network address.
func (l *TCPListener) Addr() net.Addr {
	return l.listener.Addr()
}

// Serve accepts connections and runs a ClientConn for each.
// Blocks until Close is called or an error occurs.
func (l *TCPListener) Serve() error {
	l.server.Spec.Log.Info("TCP listener started", "addr", l.listener.Addr().String())

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if l.closed.Load() {
				return nil // Normal shutdown
			}
			l.server.Spec.Log.Error("accept error", "error", err)
			continue
		}

		l.wg.Add(1)
		go l.handleConnection(conn)
	}
}

// handleConnection creates and runs a ClientConn for the connection.
func (l *TCPListener) handleConnection(conn net.Conn) {
	defer l.wg.Done()

	connID := uuid.NewString()
	l.server.Spec.Log.Debug("new TCP connection", "conn", connID, "remote", conn.RemoteAddr().String())

	cc := NewClientConn(connID, conn, &ConnConfig{
		Registry:       l.server.Spec.Registry,
		Store:          l.server.Spec.Store,
		Hub:            l.hub,
		Log:            l.server.Spec.Log,
		Status:         l.server.Status,
		OutgoingBuffer: l.server.Spec.Config.OutgoingBuffer,
	})

	l.connsMu.Lock()
	l.conns[connID] = cc
	l.connsMu.Unlock()

	err := cc.Run()
	if err != nil {
		l.server.Spec.Log.Error("connection error", "conn", connID, "error", err)
	}

	l.connsMu.Lock()
	delete(l.conns, connID)
	l.connsMu.Unlock()

	l.server.Spec.Log.Debug("connection ended", "conn", connID)
}

// Close shuts down the listener and all connections.
func (l *TCPListener) Close() error {
	if l.closed.Swap(true) {
		return nil // Already closed
	}

	close(l.done)

	// Close listener to stop accepting new connections
	if err := l.listener.Close(); err != nil {
		l.server.Spec.Log.Error("error closing listener", "error", err)
	}

	// Close all active connections
	l.connsMu.RLock()
	for _, cc := range l.conns {
		cc.Close()
	}
	l.connsMu.RUnlock()

	// Wait for all connections to complete
	l.wg.Wait()

	l.server.Spec.Log.Info("TCP listener stopped")
	return nil
}

// ConnCount returns the number of active connections.
func (l *TCPListener) ConnCount() int {
	l.connsMu.RLock()
	defer l.connsMu.RUnlock()
	return len(l.conns)
}
