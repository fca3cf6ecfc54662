package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/signadot/sessiond/api"
)

// DefaultCallTimeout bounds how long a call waits for its reply.
const DefaultCallTimeout = 10 * time.Second

const maxReplyBytes = 1 << 20

// Client is a connection to a sessiond server. Calls are serialized, so a
// Client is safe for concurrent use; replies arrive in call order.
type Client struct {
	conn net.Conn

	callMu      sync.Mutex // one call in flight at a time
	callTimeout time.Duration

	replies chan *api.Envelope
	events  chan *api.SweepEvent

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to a sessiond server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	c := &Client{
		conn:        conn,
		callTimeout: DefaultCallTimeout,
		replies:     make(chan *api.Envelope, 1),
		events:      make(chan *api.SweepEvent, 16),
		done:        make(chan struct{}),
	}
	go c.reader()
	return c, nil
}

// SetCallTimeout overrides the per-call reply timeout.
func (c *Client) SetCallTimeout(d time.Duration) {
	c.callTimeout = d
}

// Events returns the channel carrying server broadcast events. When the
// buffer is full the oldest event is dropped; broadcasts are best-effort
// end to end.
func (c *Client) Events() <-chan *api.SweepEvent {
	return c.events
}

// Close tears the connection down. The events channel is closed once the
// reader drains.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return c.conn.Close()
}

func (c *Client) reader() {
	defer close(c.events)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplyBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env api.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			c.Close()
			return
		}
		if env.Type == api.TypeSessionsCleaned {
			ev := &api.SweepEvent{
				Type:      env.Type,
				Timestamp: env.Timestamp,
				Evicted:   env.Evicted,
			}
			for {
				select {
				case c.events <- ev:
				case <-c.done:
					return
				default:
					// full: drop the oldest and retry
					select {
					case <-c.events:
					default:
					}
					continue
				}
				break
			}
			continue
		}
		select {
		case c.replies <- &env:
		case <-c.done:
			return
		}
	}
}

// call sends cmd and waits for the next reply.
func (c *Client) call(cmd *api.Command) (*api.Envelope, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("sending %s: %w", cmd.Command, err)
	}

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()
	select {
	case env := <-c.replies:
		if env.Type == api.TypeError {
			return nil, &api.Error{Type: env.Type, Code: env.Code, Message: env.Message}
		}
		return env, nil
	case <-timer.C:
		return nil, fmt.Errorf("timed out waiting for %s reply", cmd.Command)
	case <-c.done:
		return nil, fmt.Errorf("connection closed")
	}
}

// Register creates or resets the session identified by sessionID for userID.
func (c *Client) Register(sessionID, userID string) error {
	env, err := c.call(&api.Command{
		Command:   api.CmdRegisterSession,
		SessionID: sessionID,
		UserID:    userID,
	})
	if err != nil {
		return err
	}
	if env.Type != api.TypeRegistrationResponse {
		return fmt.Errorf("unexpected reply type %q", env.Type)
	}
	if !env.Success {
		return fmt.Errorf("registration of %s refused", sessionID)
	}
	return nil
}

// Update applies updates to a session, replacing resources_used wholesale.
// The boolean reports whether the session existed.
func (c *Client) Update(sessionID string, updates map[string]any) (bool, error) {
	return c.update(sessionID, updates, false)
}

// MergeUpdate applies updates with resources_used combined as a JSON merge
// patch.
func (c *Client) MergeUpdate(sessionID string, updates map[string]any) (bool, error) {
	return c.update(sessionID, updates, true)
}

func (c *Client) update(sessionID string, updates map[string]any, merge bool) (bool, error) {
	env, err := c.call(&api.Command{
		Command:   api.CmdUpdateSession,
		SessionID: sessionID,
		Updates:   updates,
		Merge:     merge,
	})
	if err != nil {
		return false, err
	}
	if env.Type != api.TypeUpdateResponse {
		return false, fmt.Errorf("unexpected reply type %q", env.Type)
	}
	return env.Success, nil
}

// Sessions lists sessions. filter is an optional boolean expression; empty
// lists everything.
func (c *Client) Sessions(filter string) ([]api.SessionInfo, error) {
	env, err := c.call(&api.Command{
		Command: api.CmdGetSessions,
		Filter:  filter,
	})
	if err != nil {
		return nil, err
	}
	if env.Type != api.TypeSessionsData {
		return nil, fmt.Errorf("unexpected reply type %q", env.Type)
	}
	return env.Sessions, nil
}

// Status fetches server identity and live counters.
func (c *Client) Status() (*api.StatusData, error) {
	env, err := c.call(&api.Command{Command: api.CmdGetStatus})
	if err != nil {
		return nil, err
	}
	if env.Type != api.TypeStatusData {
		return nil, fmt.Errorf("unexpected reply type %q", env.Type)
	}
	return &api.StatusData{
		Type:          env.Type,
		ServerID:      env.ServerID,
		UptimeSeconds: env.UptimeSeconds,
		SessionCount:  env.SessionCount,
		ClientCount:   env.ClientCount,
	}, nil
}
