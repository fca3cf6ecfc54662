package server

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/signadot/sessiond/api"
	"github.com/signadot/sessiond/registry"
	"github.com/signadot/sessiond/storage"
)

// maxCommandBytes bounds a single command line.
const maxCommandBytes = 1 << 20

// ClientConn represents a bidirectional connection with one client. It
// parses commands, dispatches to handlers, and sends replies and broadcast
// events.
type ClientConn struct {
	ID       string
	conn     io.ReadWriteCloser
	registry *registry.Registry
	store    *storage.Store
	hub      *BroadcastHub
	log      *slog.Logger
	status   func() *api.StatusData

	// Communication channels
	outgoing chan []byte   // replies and events to send
	done     chan struct{} // signals connection shutdown

	closeOnce sync.Once
}

// ConnConfig contains configuration for creating a connection.
type ConnConfig struct {
	Registry       *registry.Registry
	Store          *storage.Store // nil disables checkpointing
	Hub            *BroadcastHub
	Log            *slog.Logger
	Status         func() *api.StatusData
	OutgoingBuffer int // buffer size for outgoing channel (default 100)
}

// NewClientConn creates a connection handler for conn.
func NewClientConn(id string, conn io.ReadWriteCloser, cfg *ConnConfig) *ClientConn {
	bufSize := cfg.OutgoingBuffer
	if bufSize <= 0 {
		bufSize = 100
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &ClientConn{
		ID:       id,
		conn:     conn,
		registry: cfg.Registry,
		store:    cfg.Store,
		hub:      cfg.Hub,
		log:      log.With("conn", id),
		status:   cfg.Status,
		outgoing: make(chan []byte, bufSize),
		done:     make(chan struct{}),
	}
}

// Run starts the connection and blocks until it completes. It spawns a
// writer goroutine and runs the reader in the calling goroutine.
func (c *ClientConn) Run() error {
	var wg sync.WaitGroup

	// Closing the connection on done unblocks a reader stuck in a
	// blocking read.
	wg.Go(func() {
		<-c.done
		c.conn.Close()
	})

	wg.Go(func() {
		c.writer()
	})

	if c.hub != nil {
		c.hub.Add(c)
	}

	err := c.reader()

	if c.hub != nil {
		c.hub.Remove(c)
	}

	c.closeOnce.Do(func() {
		close(c.done)
	})

	wg.Wait()
	return err
}

// Close signals the connection to shut down.
func (c *ClientConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return c.conn.Close()
}

// reader reads newline-delimited commands until the connection closes. A
// malformed command produces an error reply and the connection stays open.
func (c *ClientConn) reader() error {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCommandBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd api.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			c.sendError(api.ErrCodeInvalidMessage, "failed to parse command: %v", err)
			continue
		}

		c.dispatch(&cmd)
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-c.done:
			return nil // clean shutdown
		default:
		}
		return err
	}
	return nil
}

// writer drains outgoing and writes newline-delimited documents. A write
// error tears the connection down.
func (c *ClientConn) writer() {
	for {
		select {
		case data := <-c.outgoing:
			if _, err := c.conn.Write(append(data, '\n')); err != nil {
				c.log.Debug("failed to write to client", "error", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// dispatch routes a command to the appropriate handler.
func (c *ClientConn) dispatch(cmd *api.Command) {
	switch cmd.Command {
	case api.CmdRegisterSession:
		c.handleRegister(cmd)
	case api.CmdUpdateSession:
		c.handleUpdate(cmd)
	case api.CmdGetSessions:
		c.handleGetSessions(cmd)
	case api.CmdGetStatus:
		c.handleGetStatus(cmd)
	case "":
		c.sendError(api.ErrCodeInvalidMessage, "no command specified")
	default:
		c.sendError(api.ErrCodeUnknownCommand, "unknown command %q", cmd.Command)
	}
}

func (c *ClientConn) handleRegister(cmd *api.Command) {
	if cmd.SessionID == "" || cmd.UserID == "" {
		c.sendError(api.ErrCodeInvalidMessage, "register_session: session_id and user_id are required")
		return
	}
	info, ok := c.registry.Register(cmd.SessionID, cmd.UserID)
	if ok {
		c.log.Debug("registered session", "session", info.SessionID, "user", info.UserID)
		c.checkpoint(&info)
	}
	c.send(api.NewRegistrationResponse(ok, cmd.SessionID))
}

func (c *ClientConn) handleUpdate(cmd *api.Command) {
	if cmd.SessionID == "" {
		c.sendError(api.ErrCodeInvalidMessage, "update_session: empty session_id")
		return
	}
	info, ok := c.registry.Apply(cmd.SessionID, cmd.Updates, cmd.Merge)
	if ok {
		c.checkpoint(&info)
	}
	c.send(api.NewUpdateResponse(ok, cmd.SessionID))
}

func (c *ClientConn) handleGetSessions(cmd *api.Command) {
	sessions := c.registry.ListAll()
	if cmd.Filter != "" {
		f, err := registry.CompileFilter(cmd.Filter)
		if err != nil {
			c.sendError(api.ErrCodeInvalidFilter, "%v", err)
			return
		}
		now := time.Now()
		kept := sessions[:0]
		for i := range sessions {
			match, err := f.Match(&sessions[i], now)
			if err != nil {
				c.sendError(api.ErrCodeInvalidFilter, "%v", err)
				return
			}
			if match {
				kept = append(kept, sessions[i])
			}
		}
		sessions = kept
	}
	c.send(api.NewSessionsData(sessions))
}

func (c *ClientConn) handleGetStatus(cmd *api.Command) {
	if c.status == nil {
		c.sendError(api.ErrCodeInternal, "status unavailable")
		return
	}
	c.send(c.status())
}

// checkpoint writes one session to the store. Checkpoint failures are
// logged, not surfaced to the client; the in-memory state is authoritative.
func (c *ClientConn) checkpoint(info *api.SessionInfo) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveOne(info); err != nil {
		c.log.Error("checkpoint failed", "session", info.SessionID, "error", err)
	}
}

// send encodes a reply and queues it for the writer. It blocks when the
// outgoing buffer is full, applying backpressure to this connection's own
// command stream only.
func (c *ClientConn) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("failed to encode reply", "error", err)
		return
	}
	select {
	case c.outgoing <- data:
	case <-c.done:
	}
}

// sendError sends an error document. The connection stays open.
func (c *ClientConn) sendError(code, format string, args ...any) {
	c.send(api.NewError(code, format, args...))
}

// enqueue queues raw data for the writer, giving up after timeout. Used by
// the hub for broadcasts.
func (c *ClientConn) enqueue(data []byte, timeout time.Duration) bool {
	select {
	case c.outgoing <- data:
		return true
	case <-c.done:
		return false
	case <-time.After(timeout):
		return false
	}
}
