// Package guard scopes signal handling around a region of work and
// guarantees a cleanup callback runs exactly once when the region ends.
package guard

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
)

// CleanupFunc is invoked once per scope. sig is the signal that ended the
// scope, or nil when the scope was closed normally.
type CleanupFunc func(sig os.Signal)

// Guard holds the signal disposition for the lifetime of a scope.
type Guard struct {
	cleanup CleanupFunc

	sigCh  chan os.Signal
	done   chan struct{}
	exited chan struct{}

	interrupted atomic.Bool
	cleanupOnce sync.Once
	closeOnce   sync.Once

	releaseMu sync.Mutex
	released  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Enter installs a handler for sigs (os.Interrupt when none are given) and
// returns the active guard. Close must be called when the scope ends.
func Enter(cleanup CleanupFunc, sigs ...os.Signal) *Guard {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt}
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Guard{
		cleanup: cleanup,
		sigCh:   make(chan os.Signal, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	signal.Notify(g.sigCh, sigs...)
	go g.watch()

	return g
}

func (g *Guard) watch() {
	defer close(g.exited)

	select {
	case sig := <-g.sigCh:
		// Flag first: callers polling Interrupted must not start new work
		// while the cleanup is tearing down shared state.
		g.interrupted.Store(true)
		g.cancel()
		g.runCleanup(sig)
		g.Release()
	case <-g.done:
	}
}

// Interrupted reports whether the monitored signal has been received.
func (g *Guard) Interrupted() bool {
	return g.interrupted.Load()
}

// Context is cancelled once the guard has been interrupted, so blocking
// work can be abandoned.
func (g *Guard) Context() context.Context {
	return g.ctx
}

// Release restores the previous signal disposition. Only the first call
// has an effect; it reports whether this call performed the release.
func (g *Guard) Release() bool {
	g.releaseMu.Lock()
	defer g.releaseMu.Unlock()

	if g.released {
		return false
	}
	signal.Stop(g.sigCh)
	g.released = true
	return true
}

// Close ends the scope. It waits for an in-progress interruption to finish
// its cleanup; otherwise the callback runs here with a nil signal.
func (g *Guard) Close() {
	g.closeOnce.Do(func() { close(g.done) })
	<-g.exited

	g.Release()
	g.runCleanup(nil)
	g.cancel()
}

func (g *Guard) runCleanup(sig os.Signal) {
	g.cleanupOnce.Do(func() {
		if g.cleanup != nil {
			g.cleanup(sig)
		}
	})
}
