package supervisor

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestResolveServerPathExplicitOverride(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "auth.js", "// stub\n")

	s := New(Config{ServerPath: script}, testLogger())
	if got := s.resolveServerPath(); got != script {
		t.Fatalf("resolveServerPath() = %q, want %q", got, script)
	}

	// An explicit path that does not exist is a miss, not a fallthrough
	// into the upward search.
	s = New(Config{ServerPath: filepath.Join(dir, "missing.js"), SearchFrom: script}, testLogger())
	if got := s.resolveServerPath(); got != "" {
		t.Fatalf("expected empty path for missing override, got %q", got)
	}
}

func TestResolveServerPathWalksUp(t *testing.T) {
	root := t.TempDir()
	serverDir := filepath.Join(root, "server")
	if err := os.MkdirAll(serverDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	artifact := writeScript(t, serverDir, "auth.js", "// stub\n")

	nested := filepath.Join(root, "data", "app")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	s := New(Config{SearchFrom: filepath.Join(nested, "auth.db")}, testLogger())
	if got := s.resolveServerPath(); got != artifact {
		t.Fatalf("resolveServerPath() = %q, want %q", got, artifact)
	}
}

func TestResolveServerPathBoundedDepth(t *testing.T) {
	root := t.TempDir()
	serverDir := filepath.Join(root, "server")
	if err := os.MkdirAll(serverDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeScript(t, serverDir, "auth.js", "// stub\n")

	deep := root
	for i := 0; i < maxSearchDepth+1; i++ {
		deep = filepath.Join(deep, "d")
	}
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	s := New(Config{SearchFrom: filepath.Join(deep, "auth.db")}, testLogger())
	if got := s.resolveServerPath(); got != "" {
		t.Fatalf("expected search to give up past %d levels, got %q", maxSearchDepth, got)
	}
}

func TestStartArtifactMissing(t *testing.T) {
	s := New(Config{SearchFrom: filepath.Join(t.TempDir(), "auth.db")}, testLogger())
	s.Start()
	if got := s.State(); got != NotStarted {
		t.Fatalf("expected NotStarted after missing artifact, got %v", got)
	}
}

func TestStartRuntimeMissing(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "auth.js", "// stub\n")

	s := New(Config{ServerPath: script, Runtime: "definitely-not-a-real-runtime"}, testLogger())
	s.Start()
	if got := s.State(); got != NotStarted {
		t.Fatalf("expected NotStarted after missing runtime, got %v", got)
	}
}

func TestStartHealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	dir := t.TempDir()
	script := writeScript(t, dir, "auth.js", "sleep 30\n")

	s := New(Config{
		ServerPath:   script,
		Runtime:      "/bin/sh",
		ReadyURL:     ts.URL,
		ReadyTimeout: 2 * time.Second,
		PollInterval: 20 * time.Millisecond,
	}, testLogger())
	defer s.Stop()

	s.Start()
	if got := s.State(); got != Healthy {
		t.Fatalf("expected Healthy, got %v", got)
	}
}

func TestStartUnhealthyKeepsProcessRunning(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	dir := t.TempDir()
	script := writeScript(t, dir, "auth.js", "sleep 30\n")

	s := New(Config{
		ServerPath:   script,
		Runtime:      "/bin/sh",
		ReadyURL:     ts.URL,
		ReadyTimeout: 200 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
	}, testLogger())
	defer s.Stop()

	s.Start()
	if got := s.State(); got != Unhealthy {
		t.Fatalf("expected Unhealthy after readiness deadline, got %v", got)
	}

	// The health-check failure must not have terminated the child.
	select {
	case err := <-s.waitCh:
		t.Fatalf("child exited after failed health check: %v", err)
	default:
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := New(Config{}, testLogger())
	s.Stop()
	if got := s.State(); got != NotStarted {
		t.Fatalf("expected NotStarted when nothing was spawned, got %v", got)
	}
}

func TestStopIdempotent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	dir := t.TempDir()
	script := writeScript(t, dir, "auth.js", "sleep 30\n")

	s := New(Config{
		ServerPath:   script,
		Runtime:      "/bin/sh",
		ReadyURL:     ts.URL,
		ReadyTimeout: 2 * time.Second,
		PollInterval: 20 * time.Millisecond,
	}, testLogger())
	s.Start()
	if got := s.State(); got != Healthy {
		t.Fatalf("expected Healthy before stop, got %v", got)
	}

	s.Stop()
	if got := s.State(); got != Stopped {
		t.Fatalf("expected Stopped after first stop, got %v", got)
	}
	if s.cmd != nil {
		t.Fatalf("expected process handle cleared after stop")
	}

	// Second call must be a no-op: handle already cleared, no signal sent.
	s.Stop()
	if got := s.State(); got != Stopped {
		t.Fatalf("expected Stopped after second stop, got %v", got)
	}
}

func TestStopConcurrent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	dir := t.TempDir()
	script := writeScript(t, dir, "auth.js", "sleep 30\n")

	s := New(Config{
		ServerPath:   script,
		Runtime:      "/bin/sh",
		ReadyURL:     ts.URL,
		ReadyTimeout: 2 * time.Second,
		PollInterval: 20 * time.Millisecond,
	}, testLogger())
	s.Start()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()

	if got := s.State(); got != Stopped {
		t.Fatalf("expected Stopped after concurrent stops, got %v", got)
	}
}

func TestStopAfterChildExited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	dir := t.TempDir()
	script := writeScript(t, dir, "auth.js", "exit 0\n")

	s := New(Config{
		ServerPath:   script,
		Runtime:      "/bin/sh",
		ReadyURL:     ts.URL,
		ReadyTimeout: 2 * time.Second,
		PollInterval: 20 * time.Millisecond,
	}, testLogger())
	s.Start()

	// Give the short-lived child time to exit before stopping.
	select {
	case err := <-s.waitCh:
		s.waitCh <- err
	case <-time.After(2 * time.Second):
		t.Fatalf("child did not exit")
	}

	s.Stop()
	if got := s.State(); got != Stopped {
		t.Fatalf("expected Stopped after child exited on its own, got %v", got)
	}
}
