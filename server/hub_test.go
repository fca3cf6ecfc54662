package server

import (
	"net"
	"testing"
	"time"

	"github.com/signadot/sessiond/api"
)

func TestBroadcastPrunesSlowClient(t *testing.T) {
	hub := NewBroadcastHubWithTimeout(nil, 50*time.Millisecond)

	// a connection whose writer never runs and whose buffer holds one event
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()
	cc := NewClientConn("slow", local, &ConnConfig{OutgoingBuffer: 1})
	hub.Add(cc)

	if got := hub.Broadcast(api.NewSweepEvent(time.Now(), 0)); got != 1 {
		t.Fatalf("first broadcast reached %d, want 1", got)
	}

	// buffer is full now, so the hub must give up and prune
	if got := hub.Broadcast(api.NewSweepEvent(time.Now(), 0)); got != 0 {
		t.Fatalf("second broadcast reached %d, want 0", got)
	}
	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("slow client not pruned, count = %d", n)
	}

	// pruning closed the connection
	select {
	case <-cc.done:
	default:
		t.Fatal("pruned connection not closed")
	}
}

func TestBroadcastSkipsClosedClient(t *testing.T) {
	hub := NewBroadcastHubWithTimeout(nil, time.Second)

	local, remote := net.Pipe()
	defer remote.Close()
	cc := NewClientConn("closed", local, &ConnConfig{OutgoingBuffer: 1})
	hub.Add(cc)
	cc.Close()

	// fill the buffer so enqueue cannot succeed, then broadcast; the done
	// channel must win immediately instead of waiting out the timeout
	cc.outgoing <- []byte("x")
	start := time.Now()
	if got := hub.Broadcast(api.NewSweepEvent(time.Now(), 0)); got != 0 {
		t.Fatalf("broadcast reached %d, want 0", got)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("broadcast to closed client took %v", elapsed)
	}
	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("closed client not pruned, count = %d", n)
	}
}

func TestHubAddRemove(t *testing.T) {
	hub := NewBroadcastHub(nil)
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()
	cc := NewClientConn("c1", local, &ConnConfig{})

	hub.Add(cc)
	if n := hub.ClientCount(); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	hub.Remove(cc)
	hub.Remove(cc) // idempotent
	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}
}
