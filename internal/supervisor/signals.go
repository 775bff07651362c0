package supervisor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// The process-wide signal relay. On SIGTERM/SIGINT it runs registered
// cleanups, restores the default disposition, and re-raises the signal so
// the host process still dies from it. Go delivers each signal to every
// subscribed channel, so a host that installed its own handler before or
// after the relay keeps receiving the signal too.
var relay struct {
	mu        sync.Mutex
	installed bool
	ch        chan os.Signal
	cleanups  []func()
}

// OnTerminate registers fn to run once before the process dies from
// SIGTERM or SIGINT. The first call installs the relay and returns true;
// later calls piggyback on the existing relay and return false. Unlike
// platforms that restrict handler installation to the main thread, Go
// accepts installation from any goroutine, so registration itself cannot
// fail; callers should still hold on to an explicit Close path as the
// guaranteed cleanup route.
func OnTerminate(fn func()) bool {
	relay.mu.Lock()
	defer relay.mu.Unlock()

	relay.cleanups = append(relay.cleanups, fn)
	if relay.installed {
		return false
	}

	relay.ch = make(chan os.Signal, 1)
	signal.Notify(relay.ch, syscall.SIGTERM, syscall.SIGINT)
	relay.installed = true

	go func(ch chan os.Signal) {
		sig, ok := <-ch
		if !ok {
			return
		}
		runCleanups()
		signal.Stop(ch)
		signal.Reset(sig)
		if p, err := os.FindProcess(os.Getpid()); err == nil {
			_ = p.Signal(sig)
		}
	}(relay.ch)
	return true
}

// runCleanups executes registered cleanups newest-first, mirroring deferred
// cleanup order. Each cleanup is expected to be idempotent.
func runCleanups() {
	relay.mu.Lock()
	cleanups := append([]func(){}, relay.cleanups...)
	relay.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// resetRelay tears the relay down. Tests only.
func resetRelay() {
	relay.mu.Lock()
	defer relay.mu.Unlock()
	if relay.ch != nil {
		signal.Stop(relay.ch)
		close(relay.ch)
		relay.ch = nil
	}
	relay.installed = false
	relay.cleanups = nil
}
