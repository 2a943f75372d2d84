package scrcpy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/mirrorctl/internal/domain"
	"github.com/bnema/mirrorctl/internal/ports"
)

var ErrUnavailable = fmt.Errorf("scrcpy command unavailable: %w", domain.ErrTransport)

type process interface {
	Pid() int
	Exited() bool
	Kill() error
}

type spawnFunc func(path string, args []string, env []string) (process, error)

type tracked struct {
	proc      process
	deviceID  domain.DeviceID
	startedAt time.Time
}

// Manager spawns one scrcpy process per session and tracks it until it exits
// or is stopped.
type Manager struct {
	path    string
	adbPath string
	spawn   spawnFunc
	clock   ports.Clock
	log     zerolog.Logger

	mu           sync.Mutex
	procs        map[domain.SessionID]*tracked
	totalStarted int
}

func NewManager(path, adbPath string, clock ports.Clock, log zerolog.Logger) *Manager {
	if strings.TrimSpace(path) == "" {
		path = "scrcpy"
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	m := &Manager{
		path:    path,
		adbPath: adbPath,
		clock:   clock,
		log:     log.With().Str("component", "scrcpy").Logger(),
		procs:   map[domain.SessionID]*tracked{},
	}
	m.spawn = m.spawnProcess
	return m
}

// Args builds the scrcpy command line for a device.
func Args(serial string, opts domain.MirrorOptions) []string {
	args := []string{"-s", serial}
	if opts.MaxSize > 0 {
		args = append(args, "--max-size", strconv.Itoa(opts.MaxSize))
	}
	if opts.BitRate > 0 {
		args = append(args, "--video-bit-rate", strconv.Itoa(opts.BitRate))
	}
	if opts.MaxFPS > 0 {
		args = append(args, "--max-fps", strconv.Itoa(opts.MaxFPS))
	}
	if opts.AlwaysOnTop {
		args = append(args, "--always-on-top")
	}
	if opts.StayAwake {
		args = append(args, "--stay-awake")
	}
	if opts.TurnScreenOff {
		args = append(args, "--turn-screen-off")
	}

	return args
}

func (m *Manager) Start(deviceID domain.DeviceID, opts domain.MirrorOptions) (domain.SessionID, error) {
	m.cleanupFinished()

	var env []string
	if m.adbPath != "" {
		env = append(os.Environ(), "ADB="+m.adbPath)
	}

	proc, err := m.spawn(m.path, Args(string(deviceID), opts), env)
	if err != nil {
		return "", err
	}

	id := domain.SessionID(fmt.Sprintf("session_%s_%d", deviceID, proc.Pid()))

	m.mu.Lock()
	m.procs[id] = &tracked{proc: proc, deviceID: deviceID, startedAt: m.clock.Now()}
	m.totalStarted++
	m.mu.Unlock()

	m.log.Info().Str("session_id", string(id)).Str("device_id", string(deviceID)).Int("pid", proc.Pid()).Msg("scrcpy started")
	return id, nil
}

func (m *Manager) Stop(id domain.SessionID) (bool, error) {
	m.mu.Lock()
	t, ok := m.procs[id]
	if ok {
		delete(m.procs, id)
	}
	m.mu.Unlock()

	if !ok {
		return false, fmt.Errorf("stop %s: %w", id, domain.ErrSessionNotFound)
	}
	if err := t.proc.Kill(); err != nil && !t.proc.Exited() {
		return false, fmt.Errorf("kill scrcpy %d: %w: %w", t.proc.Pid(), err, domain.ErrRejected)
	}

	m.log.Info().Str("session_id", string(id)).Msg("scrcpy stopped")
	return true, nil
}

// StopAll kills every tracked process and returns how many there were.
func (m *Manager) StopAll() int {
	m.mu.Lock()
	procs := m.procs
	m.procs = map[domain.SessionID]*tracked{}
	m.mu.Unlock()

	for id, t := range procs {
		if err := t.proc.Kill(); err != nil && !t.proc.Exited() {
			m.log.Warn().Err(err).Str("session_id", string(id)).Msg("failed to stop scrcpy")
		}
	}

	return len(procs)
}

func (m *Manager) Status(id domain.SessionID) domain.SessionStatus {
	m.cleanupFinished()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.procs[id]; ok {
		return domain.SessionRunning
	}

	return domain.SessionStopped
}

func (m *Manager) Sessions() []domain.MirrorSession {
	m.cleanupFinished()

	m.mu.Lock()
	out := make([]domain.MirrorSession, 0, len(m.procs))
	for id, t := range m.procs {
		out = append(out, domain.MirrorSession{ID: id, DeviceID: t.deviceID, StartedAt: t.startedAt})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) Stats() domain.ProcessStats {
	m.cleanupFinished()

	m.mu.Lock()
	defer m.mu.Unlock()

	return domain.ProcessStats{ActiveSessions: len(m.procs), TotalStarted: m.totalStarted}
}

// Version runs `scrcpy --version` and returns its first line.
func (m *Manager) Version(ctx context.Context) (string, error) {
	path, err := exec.LookPath(m.path)
	if err != nil {
		return "", ErrUnavailable
	}

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("scrcpy --version: %w: %w", err, domain.ErrRejected)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line), nil
}

func (m *Manager) cleanupFinished() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range m.procs {
		if t.proc.Exited() {
			delete(m.procs, id)
			m.log.Debug().Str("session_id", string(id)).Msg("scrcpy exited")
		}
	}
}

func (m *Manager) spawnProcess(path string, args []string, env []string) (process, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrUnavailable
		}
		return nil, fmt.Errorf("locate scrcpy: %w: %w", err, domain.ErrTransport)
	}

	// Not bound to a request context: the mirror outlives the call that started it.
	cmd := exec.Command(resolved, args...)
	cmd.Env = env
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start scrcpy: %w: %w", err, domain.ErrRejected)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		m.log.Debug().Err(err).Int("pid", cmd.Process.Pid).Msg("scrcpy process exited")
		close(p.done)
	}()

	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}
