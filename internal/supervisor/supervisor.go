package supervisor

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// State of the supervised auth server process.
type State string

const (
	NotStarted State = "not_started"
	Starting   State = "starting"
	Healthy    State = "healthy"
	Unhealthy  State = "unhealthy"
	Stopping   State = "stopping"
	Stopped    State = "stopped"
)

const (
	// DefaultPort is handed to the spawned server via AUTH_PORT.
	DefaultPort = "3456"

	readinessPath = "/api/auth/ok"

	// How many ancestor directories the artifact search climbs before
	// giving up.
	maxSearchDepth = 10
)

// Config controls one supervised auth server process.
type Config struct {
	// ServerPath is an explicit artifact path. When set it wins over the
	// upward search and must point at an existing file.
	ServerPath string
	// SearchFrom is the reference path (typically the database location)
	// the upward search for server/auth.js starts from.
	SearchFrom string
	// Port the server listens on; defaults to DefaultPort.
	Port string
	// Runtime executes the artifact; defaults to "node".
	Runtime string
	// ReadyURL overrides the readiness endpoint, for tests.
	ReadyURL string

	ReadyTimeout time.Duration // readiness deadline, default 5s
	PollInterval time.Duration // readiness poll interval, default 100ms
	TermTimeout  time.Duration // wait after SIGTERM, default 3s
	KillTimeout  time.Duration // wait after SIGKILL, default 2s
}

// Supervisor owns at most one auth server child process. Every failure on
// the start path is logged and swallowed: session validation never depends
// on the supervised process being up.
type Supervisor struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	state   State
	cmd     *exec.Cmd
	waitCh  chan error
	stopped bool
}

func New(cfg Config, log zerolog.Logger) *Supervisor {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.Runtime == "" {
		cfg.Runtime = "node"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.TermTimeout <= 0 {
		cfg.TermTimeout = 3 * time.Second
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = 2 * time.Second
	}
	return &Supervisor{
		cfg:   cfg,
		log:   log.With().Str("component", "corral-auth").Logger(),
		state: NotStarted,
	}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Stopped {
		return
	}
	s.state = st
}

// Start resolves, spawns, and health-checks the auth server. It blocks for at
// most the readiness deadline. All failures are soft: the supervisor logs a
// warning and stays in NotStarted.
func (s *Supervisor) Start() {
	s.mu.Lock()
	if s.state != NotStarted || s.stopped {
		s.mu.Unlock()
		return
	}
	s.state = Starting
	s.mu.Unlock()

	path := s.resolveServerPath()
	if path == "" {
		s.log.Warn().Msg("server/auth.js not found; login/signup unavailable, session validation still works")
		s.setState(NotStarted)
		return
	}
	if _, err := exec.LookPath(s.cfg.Runtime); err != nil {
		s.log.Warn().Str("runtime", s.cfg.Runtime).Msg("runtime not installed; skipping auth server spawn")
		s.setState(NotStarted)
		return
	}

	cmd := exec.Command(s.cfg.Runtime, path)
	cmd.Env = append(os.Environ(), "AUTH_PORT="+s.cfg.Port)
	// Own process group so termination signals reach the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to open auth server stdout")
		s.setState(NotStarted)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to open auth server stderr")
		s.setState(NotStarted)
		return
	}

	if err := cmd.Start(); err != nil {
		s.log.Warn().Err(err).Msg("failed to spawn auth server")
		s.setState(NotStarted)
		return
	}

	waitCh := make(chan error, 1)
	s.mu.Lock()
	s.cmd = cmd
	s.waitCh = waitCh
	s.mu.Unlock()
	go func() { waitCh <- cmd.Wait() }()

	go s.forward(stdout, zerolog.InfoLevel)
	go s.forward(stderr, zerolog.WarnLevel)

	if s.pollReady() {
		s.setState(Healthy)
		s.log.Info().Int("pid", cmd.Process.Pid).Str("port", s.cfg.Port).Msg("auth server ready")
	} else {
		s.setState(Unhealthy)
		s.log.Warn().Dur("deadline", s.cfg.ReadyTimeout).Msg("auth server health check failed; it may still be starting")
	}
}

// resolveServerPath locates the server artifact: an explicit path wins;
// otherwise climb from the reference path looking for server/auth.js.
func (s *Supervisor) resolveServerPath() string {
	if s.cfg.ServerPath != "" {
		if _, err := os.Stat(s.cfg.ServerPath); err == nil {
			return s.cfg.ServerPath
		}
		return ""
	}
	if s.cfg.SearchFrom == "" {
		return ""
	}

	dir, err := filepath.Abs(s.cfg.SearchFrom)
	if err != nil {
		return ""
	}
	dir = filepath.Dir(dir)
	for i := 0; i < maxSearchDepth; i++ {
		candidate := filepath.Join(dir, "server", "auth.js")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// forward copies one line-oriented stream into the log until it closes. Read
// errors are swallowed: log piping is best-effort and must never take the
// supervisor down with it.
func (s *Supervisor) forward(r io.Reader, level zerolog.Level) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			s.log.WithLevel(level).Msg(line)
		}
	}
}

// pollReady hits the readiness endpoint until it answers 200 or the deadline
// passes. Network errors are expected while the server boots and are ignored.
func (s *Supervisor) pollReady() bool {
	url := s.cfg.ReadyURL
	if url == "" {
		url = fmt.Sprintf("http://127.0.0.1:%s%s", s.cfg.Port, readinessPath)
	}
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(s.cfg.ReadyTimeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(s.cfg.PollInterval)
	}
	return false
}

// Stop terminates the supervised process: SIGTERM, bounded wait, then SIGKILL
// with a second bounded wait. Safe to call from multiple goroutines and from
// the signal relay; only the first call runs the termination sequence, every
// later call observes the stopped handle and returns immediately. Stop never
// returns an error: signal delivery failures mean the process is already gone.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.stopped || s.cmd == nil || s.cmd.Process == nil {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.state = Stopping
	cmd := s.cmd
	waitCh := s.waitCh
	s.cmd = nil
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = Stopped
		s.mu.Unlock()
	}()

	// Already exited on its own.
	select {
	case <-waitCh:
		return
	default:
	}

	s.log.Info().Int("pid", cmd.Process.Pid).Msg("stopping auth server")

	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	select {
	case <-waitCh:
		return
	case <-time.After(s.cfg.TermTimeout):
	}

	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	select {
	case <-waitCh:
	case <-time.After(s.cfg.KillTimeout):
	}
}
