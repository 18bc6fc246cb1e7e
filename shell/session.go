package shell

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/winxlab/winx/core"
)

// StatusSentinel is echoed after simple commands so their exit status is
// recoverable from the output stream.
const StatusSentinel = "WINX_CMD_STATUS"

var sentinelPattern = regexp.MustCompile(StatusSentinel + `=(\d+)`)

const (
	inputChannelCap  = 100
	signalChannelCap = 10
	statusPollEvery  = 100 * time.Millisecond
	cdSettle         = 500 * time.Millisecond
)

// State enumerates the session's process state.
type State int

const (
	StateNotRunning State = iota
	StateRunning
	StateExited
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	}
	return "not_running"
}

// Status is a point-in-time view of the session.
type Status struct {
	State    State
	ExitCode int // valid when State == StateExited
	Stdout   string
	Stderr   string
}

// outputBuffer is an append-only mutex-guarded byte accumulator. Readers see
// a consistent prefix of everything appended so far.
type outputBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *outputBuffer) Append(p []byte) {
	b.mu.Lock()
	b.buf.Write(p)
	b.mu.Unlock()
}

func (b *outputBuffer) AppendString(s string) {
	b.mu.Lock()
	b.buf.WriteString(s)
	b.mu.Unlock()
}

func (b *outputBuffer) Snapshot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *outputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *outputBuffer) Clear() {
	b.mu.Lock()
	b.buf.Reset()
	b.mu.Unlock()
}

// Session is a long-lived interactive shell. One exists per mode name,
// process-wide; the subprocess is spawned once and killed when the session is
// closed.
type Session struct {
	screen *ScreenManager

	stdout *outputBuffer
	stderr *outputBuffer

	inputCh  chan string
	signalCh chan byte

	mu          sync.Mutex
	cwd         string
	lastCommand string
	state       State
	exitCode    int
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	done        chan struct{}
	closeOnce   sync.Once
}

// NewSession spawns a piped bash rooted at cwd. The interactive shell always
// runs on plain pipes; the screen manager only hosts detached sub-sessions
// spawned by background commands. A cwd that does not exist falls back to the
// user's home directory.
func NewSession(screen *ScreenManager, cwd string) (*Session, error) {
	if info, err := os.Stat(cwd); err != nil || !info.IsDir() {
		if home, homeErr := os.UserHomeDir(); homeErr == nil {
			cwd = home
		}
	}

	s := &Session{
		screen:   screen,
		stdout:   &outputBuffer{},
		stderr:   &outputBuffer{},
		inputCh:  make(chan string, inputChannelCap),
		signalCh: make(chan byte, signalChannelCap),
		cwd:      cwd,
		done:     make(chan struct{}),
	}

	cmd := exec.Command("bash")
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, core.NewError(core.ErrBashExecution, "stdin pipe: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, core.NewError(core.ErrBashExecution, "stdout pipe: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, core.NewError(core.ErrBashExecution, "stderr pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, core.NewError(core.ErrBashExecution, "shell failed to start: %v", err)
	}
	s.cmd = cmd
	s.stdin = stdin
	s.state = StateRunning

	go s.readLoop(stdout, s.stdout)
	go s.readLoop(stderr, s.stderr)
	go s.writeLoop()
	go s.waitLoop()

	// Quiet prompt so command output is not interleaved with prompt noise.
	s.inputCh <- "export PS1=''; export PS2=''\n"
	return s, nil
}

// readLoop copies a stream into its buffer. EOF flips the status to exited;
// the exit code arrives from waitLoop.
func (s *Session) readLoop(r io.Reader, buf *outputBuffer) {
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Append(chunk[:n])
		}
		if err != nil {
			return
		}
	}
}

// writeLoop is the single consumer of the input and signal channels, which
// serializes commands in send-order.
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case text, ok := <-s.inputCh:
			if !ok {
				return
			}
			io.WriteString(s.stdin, text)
		case sig, ok := <-s.signalCh:
			if !ok {
				return
			}
			s.stdin.Write([]byte{sig})
		}
	}
}

func (s *Session) waitLoop() {
	err := s.cmd.Wait()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	}
	s.mu.Lock()
	s.state = StateExited
	s.exitCode = code
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.done) })
}

// Cwd returns the session's current working directory.
func (s *Session) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// LastCommand returns the most recently executed command.
func (s *Session) LastCommand() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommand
}

// Execute sends command to the shell. Background forms are rewritten into a
// detached screen sub-session when the utility is installed; cd commands
// update the tracked cwd after a settle interval.
func (s *Session) Execute(command string) (string, error) {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return "", core.NewError(core.ErrShellNotStarted, "shell is not running")
	}
	s.lastCommand = command
	cwd := s.cwd
	s.mu.Unlock()

	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return "", core.NewError(core.ErrInvalidArgument, "empty command")
	}

	var warning string
	if NeedsTerminal(trimmed) {
		warning = fmt.Sprintf("Warning: %s needs a real terminal; output may be garbled or empty.\n",
			strings.Fields(trimmed)[0])
	}

	if body, ok := backgroundForm(trimmed); ok && s.screenAvailable() {
		sub := NewSessionID()
		if err := s.screen.StartDetached(sub, cwd, body); err != nil {
			return "", err
		}
		msg := fmt.Sprintf("[running in background: screen session %s]", sub)
		s.stdout.AppendString(msg + "\n")
		return warning + msg, nil
	}

	s.stdout.Clear()
	s.stderr.Clear()

	line := command
	if isSimpleCommand(trimmed) {
		line = fmt.Sprintf("%s 2>&1; echo \"%s=$?\"", command, StatusSentinel)
	}
	if err := s.send(line + "\n"); err != nil {
		return "", err
	}

	if strings.HasPrefix(trimmed, "cd ") || trimmed == "cd" {
		s.trackCwdChange()
	}
	return warning, nil
}

// send enqueues text without blocking forever when the channel is saturated.
func (s *Session) send(text string) error {
	select {
	case s.inputCh <- text:
		return nil
	case <-time.After(5 * time.Second):
		return core.NewError(core.ErrBashExecution, "shell input channel is full")
	case <-s.done:
		return core.NewError(core.ErrShellNotStarted, "shell has exited")
	}
}

// trackCwdChange waits out the settle interval, issues pwd and adopts the
// first line of fresh output, trimmed of its newline, as the new cwd.
func (s *Session) trackCwdChange() {
	time.Sleep(cdSettle)
	mark := s.stdout.Len()
	if err := s.send("pwd\n"); err != nil {
		return
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		out := s.stdout.Snapshot()
		if len(out) > mark {
			fresh := out[mark:]
			if i := strings.IndexByte(fresh, '\n'); i >= 0 {
				line := strings.TrimRight(fresh[:i], "\r\n")
				if strings.HasPrefix(line, "/") {
					s.mu.Lock()
					s.cwd = line
					s.mu.Unlock()
				}
				return
			}
		}
		time.Sleep(statusPollEvery)
	}
}

// WaitStatus polls the session status every 100 ms for up to timeoutSecs and
// returns the status plus buffer snapshots. Reaching the timeout is not an
// error; the current state is returned.
func (s *Session) WaitStatus(timeoutSecs float64) Status {
	deadline := time.Now().Add(time.Duration(timeoutSecs * float64(time.Second)))
	for {
		status := s.Snapshot()
		if status.State != StateRunning || !time.Now().Before(deadline) {
			return status
		}
		if done := s.commandFinished(status.Stdout); done {
			return status
		}
		time.Sleep(statusPollEvery)
	}
}

// commandFinished reports whether the last simple command's sentinel has
// appeared in the output.
func (s *Session) commandFinished(stdout string) bool {
	s.mu.Lock()
	last := s.lastCommand
	s.mu.Unlock()
	if !isSimpleCommand(strings.TrimSpace(last)) {
		return false
	}
	return sentinelPattern.MatchString(stdout)
}

// Snapshot returns the current state and buffers without waiting.
func (s *Session) Snapshot() Status {
	s.mu.Lock()
	state := s.state
	code := s.exitCode
	s.mu.Unlock()
	return Status{
		State:    state,
		ExitCode: code,
		Stdout:   s.stdout.Snapshot(),
		Stderr:   s.stderr.Snapshot(),
	}
}

// LastExitStatus extracts the sentinel's code from the stdout snapshot.
func LastExitStatus(stdout string) (int, bool) {
	matches := sentinelPattern.FindAllStringSubmatch(stdout, -1)
	if len(matches) == 0 {
		return 0, false
	}
	code, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0, false
	}
	return code, true
}

// RecoverEmptyOutput re-runs the last command synchronously in a child
// process when both buffers came back empty, appending what it captures.
func (s *Session) RecoverEmptyOutput() {
	if s.stdout.Len() > 0 || s.stderr.Len() > 0 {
		return
	}
	s.mu.Lock()
	command := s.lastCommand
	cwd := s.cwd
	s.mu.Unlock()
	if strings.TrimSpace(command) == "" {
		return
	}
	cmd := exec.Command("bash", "-c", command)
	cmd.Dir = cwd
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	_ = cmd.Run()
	if stdout.Len() > 0 {
		s.stdout.AppendString(stdout.String())
	}
	if stderr.Len() > 0 {
		s.stderr.AppendString(stderr.String())
	}
}

// SendText enqueues raw text onto the input channel.
func (s *Session) SendText(text string) error {
	return s.send(text)
}

// SendSpecials enqueues the byte sequences of the named keys.
func (s *Session) SendSpecials(names []string) error {
	for _, name := range names {
		seq, err := TranslateSpecial(name)
		if err != nil {
			return err
		}
		if err := s.send(seq); err != nil {
			return err
		}
	}
	return nil
}

// SendASCII enqueues raw byte codes.
func (s *Session) SendASCII(codes []int) error {
	for _, code := range codes {
		if code < 0 || code > 255 {
			return core.NewError(core.ErrInvalidArgument, "ascii code %d out of range", code)
		}
		if err := s.send(string([]byte{byte(code)})); err != nil {
			return err
		}
	}
	return nil
}

// SendInterrupt enqueues the interrupt byte (0x03) onto the signal channel.
// The send is cooperative: the child is not waited on.
func (s *Session) SendInterrupt() error {
	select {
	case s.signalCh <- 0x03:
		return nil
	case <-s.done:
		return core.NewError(core.ErrShellNotStarted, "shell has exited")
	default:
		return core.NewError(core.ErrBashExecution, "signal channel is full")
	}
}

// SendEOF enqueues the end-of-transmission byte (0x04).
func (s *Session) SendEOF() error {
	select {
	case s.signalCh <- 0x04:
		return nil
	case <-s.done:
		return core.NewError(core.ErrShellNotStarted, "shell has exited")
	default:
		return core.NewError(core.ErrBashExecution, "signal channel is full")
	}
}

func (s *Session) screenAvailable() bool {
	return s.screen != nil && s.screen.Available()
}

// Close kills the subprocess. Best effort.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	s.mu.Lock()
	cmd := s.cmd
	s.state = StateNotRunning
	s.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// backgroundForm strips a trailing '&' (not '&&') and returns the body.
func backgroundForm(command string) (string, bool) {
	if !strings.HasSuffix(command, "&") || strings.HasSuffix(command, "&&") {
		return "", false
	}
	body := strings.TrimSpace(strings.TrimSuffix(command, "&"))
	if body == "" {
		return "", false
	}
	return body, true
}

// isSimpleCommand reports whether the sentinel can be appended safely: no
// redirection, piping, chaining or cd.
func isSimpleCommand(command string) bool {
	if command == "" || strings.HasPrefix(command, "cd ") || command == "cd" {
		return false
	}
	return !strings.ContainsAny(command, "|<>;&")
}

// Manager owns at most one session per mode name, process-wide.
type Manager struct {
	screen *ScreenManager

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager builds a session manager sharing one screen manager.
func NewManager(screen *ScreenManager) *Manager {
	return &Manager{screen: screen, sessions: make(map[string]*Session)}
}

// Screen exposes the shared screen manager.
func (m *Manager) Screen() *ScreenManager { return m.screen }

// Get returns the session for name when one exists.
func (m *Manager) Get(name string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[name]
	return s, ok
}

// GetOrCreate lazily spawns the session for name rooted at cwd.
func (m *Manager) GetOrCreate(name, cwd string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[name]; ok {
		return s, nil
	}
	s, err := NewSession(m.screen, cwd)
	if err != nil {
		return nil, err
	}
	m.sessions[name] = s
	return s, nil
}

// Reset closes and forgets the session for name. Used on re-initialize with a
// different mode.
func (m *Manager) Reset(name string) {
	m.mu.Lock()
	s, ok := m.sessions[name]
	delete(m.sessions, name)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseAll terminates every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
