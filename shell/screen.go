package shell

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/winxlab/winx/core"
)

// sessionPrefix marks the detachable sessions this process manages.
const sessionPrefix = "winx"

var sessionCounter atomic.Int64

// NewSessionID generates `winx.<pid>.<epoch-seconds-mod-1e6>.<counter>`.
func NewSessionID() string {
	return fmt.Sprintf("%s.%d.%d.%d",
		sessionPrefix, os.Getpid(), time.Now().Unix()%1_000_000, sessionCounter.Add(1))
}

// ownerPID extracts the creating process's pid from a winx session name,
// `winx.<pid>.<time>.<counter>`. The orphan check consults this pid rather
// than the screen server's row pid, which daemonizes under init for -dmS
// sessions.
func ownerPID(name string) (int, bool) {
	if !strings.HasPrefix(name, sessionPrefix+".") {
		return 0, false
	}
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return 0, false
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return pid, true
}

// ScreenSession is one row of the host screen utility's session table.
type ScreenSession struct {
	PID      int    `json:"pid"`
	Name     string `json:"name"`
	Attached bool   `json:"attached"`
	Orphaned bool   `json:"orphaned"`
}

// ScreenManager wraps the host screen binary. All methods degrade to
// structured errors when the binary is absent.
type ScreenManager struct {
	binary string

	mu    sync.Mutex
	owned []string // session ids created by this process
}

// NewScreenManager locates the screen binary; Available reports the result.
func NewScreenManager() *ScreenManager {
	path, err := exec.LookPath("screen")
	if err != nil {
		return &ScreenManager{}
	}
	return &ScreenManager{binary: path}
}

// Available reports whether the screen utility can be used.
func (m *ScreenManager) Available() bool { return m.binary != "" }

func (m *ScreenManager) requireBinary() error {
	if m.binary == "" {
		return core.NewError(core.ErrBashExecution, "the screen utility is not installed")
	}
	return nil
}

// StartDetached creates a detached session named id running command in dir.
func (m *ScreenManager) StartDetached(id, dir, command string) error {
	if err := m.requireBinary(); err != nil {
		return err
	}
	cmd := exec.Command(m.binary, "-dmS", id, "bash", "-c", command)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	if err := cmd.Run(); err != nil {
		return core.NewError(core.ErrBashExecution, "screen session %s failed to start: %v", id, err)
	}
	m.mu.Lock()
	m.owned = append(m.owned, id)
	m.mu.Unlock()
	return nil
}

// List enumerates sessions from `screen -ls`, marking winx-owned orphans.
func (m *ScreenManager) List() ([]ScreenSession, error) {
	if err := m.requireBinary(); err != nil {
		return nil, err
	}
	// screen -ls exits 1 when sessions exist, so the error is ignored and the
	// output parsed regardless.
	out, _ := exec.Command(m.binary, "-ls").CombinedOutput()
	return parseScreenList(string(out)), nil
}

// parseScreenList extracts `<pid>.<name>` rows. Anything from '@' onward in
// the pid field is the attached-host suffix some screen builds render; it is
// stripped before the pid parse.
func parseScreenList(output string) []ScreenSession {
	var sessions []ScreenSession
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, ".") {
			continue
		}
		fields := strings.Fields(line)
		entry := fields[0]
		dot := strings.Index(entry, ".")
		if dot <= 0 {
			continue
		}
		pidField := entry[:dot]
		if at := strings.Index(pidField, "@"); at >= 0 {
			pidField = pidField[:at]
		}
		pid, err := strconv.Atoi(pidField)
		if err != nil {
			continue
		}
		session := ScreenSession{
			PID:      pid,
			Name:     entry[dot+1:],
			Attached: strings.Contains(line, "(Attached)"),
		}
		if owner, ok := ownerPID(session.Name); ok {
			session.Orphaned = !processAlive(owner) || processOrphaned(owner)
		}
		sessions = append(sessions, session)
	}
	return sessions
}

// Content captures the scrollback of a session via hardcopy.
func (m *ScreenManager) Content(id string) (string, error) {
	if err := m.requireBinary(); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp("", "winx-hardcopy-*")
	if err != nil {
		return "", core.WrapIO("", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := exec.Command(m.binary, "-S", id, "-X", "hardcopy", "-h", path).Run(); err != nil {
		return "", core.NewError(core.ErrBashExecution, "hardcopy of session %s failed: %v", id, err)
	}
	// hardcopy writes asynchronously; give screen a moment to flush.
	time.Sleep(100 * time.Millisecond)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", core.WrapIO(path, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// AttachCommand returns the command a human runs to attach, after verifying
// the session is alive.
func (m *ScreenManager) AttachCommand(id string) (string, error) {
	sessions, err := m.List()
	if err != nil {
		return "", err
	}
	for _, s := range sessions {
		if s.Name == id {
			return fmt.Sprintf("screen -r %s", id), nil
		}
	}
	return "", core.NewError(core.ErrInvalidArgument, "no screen session named %q", id)
}

// Detach requests a power-detach of the session.
func (m *ScreenManager) Detach(id string) error {
	if err := m.requireBinary(); err != nil {
		return err
	}
	if err := exec.Command(m.binary, "-S", id, "-X", "detach").Run(); err != nil {
		return core.NewError(core.ErrBashExecution, "detach of session %s failed: %v", id, err)
	}
	return nil
}

// Kill terminates a session.
func (m *ScreenManager) Kill(id string) error {
	if err := m.requireBinary(); err != nil {
		return err
	}
	if err := exec.Command(m.binary, "-S", id, "-X", "quit").Run(); err != nil {
		return core.NewError(core.ErrBashExecution, "quit of session %s failed: %v", id, err)
	}
	return nil
}

// KillOrphans removes winx sessions whose owning pid is gone or reparented.
func (m *ScreenManager) KillOrphans() ([]string, error) {
	sessions, err := m.List()
	if err != nil {
		return nil, err
	}
	var killed []string
	for _, s := range sessions {
		if s.Orphaned {
			if killErr := m.Kill(s.Name); killErr == nil {
				killed = append(killed, s.Name)
			}
		}
	}
	return killed, nil
}
