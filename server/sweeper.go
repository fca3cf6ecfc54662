package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/signadot/sessiond/api"
	"github.com/signadot/sessiond/registry"
	"github.com/signadot/sessiond/storage"
)

// Sweeper periodically evicts idle sessions from the registry, removes
// their checkpoint rows, and broadcasts a completion event to every
// connected client.
type Sweeper struct {
	registry *registry.Registry
	store    *storage.Store // may be nil
	hub      *BroadcastHub
	log      *slog.Logger

	interval time.Duration
	timeout  time.Duration

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// SweeperConfig contains configuration for creating a sweeper.
type SweeperConfig struct {
	Registry *registry.Registry
	Store    *storage.Store
	Hub      *BroadcastHub
	Log      *slog.Logger
	Interval time.Duration
	Timeout  time.Duration
}

// NewSweeper creates a sweeper. Start must be called to begin sweeping.
func NewSweeper(cfg *SweeperConfig) *Sweeper {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		registry: cfg.Registry,
		store:    cfg.Store,
		hub:      cfg.Hub,
		log:      log,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (sw *Sweeper) Start() {
	sw.wg.Go(func() {
		sw.run()
	})
}

func (sw *Sweeper) run() {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sw.Sweep()
		case <-sw.done:
			return
		}
	}
}

// Sweep runs one eviction pass and returns the number of evicted sessions.
// It is exported so a shutdown or operator action can force a pass between
// ticks.
func (sw *Sweeper) Sweep() int {
	evicted := sw.registry.SweepIdle(sw.timeout)

	if len(evicted) > 0 && sw.store != nil {
		ids := make([]string, len(evicted))
		for i := range evicted {
			ids[i] = evicted[i].SessionID
		}
		// Best-effort: a stale row is rewritten on the session's next
		// registration anyway.
		if err := sw.store.Delete(ids...); err != nil {
			sw.log.Error("failed to delete evicted checkpoints", "error", err)
		}
	}

	if len(evicted) > 0 {
		sw.log.Info("evicted idle sessions", "count", len(evicted))
		if sw.hub != nil {
			sw.hub.Broadcast(api.NewSweepEvent(time.Now().UTC(), len(evicted)))
		}
	}
	return len(evicted)
}

// Stop halts the sweep loop. Safe to call more than once. No sweep is in
// flight once Stop returns.
func (sw *Sweeper) Stop() {
	sw.stopOnce.Do(func() {
		close(sw.done)
	})
	sw.wg.Wait()
}
