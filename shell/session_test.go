package shell

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestIsSimpleCommand: the sentinel is only appended when the command has no
// shell metacharacters and is not a cd.
func TestIsSimpleCommand(t *testing.T) {
	cases := []struct {
		command string
		want    bool
	}{
		{"echo hello", true},
		{"ls -la /tmp", true},
		{"cat a | grep b", false},
		{"echo x > out.txt", false},
		{"sort < in.txt", false},
		{"a; b", false},
		{"make &", false},
		{"a && b", false},
		{"cd /tmp", false},
		{"cd", false},
		{"", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, isSimpleCommand(tc.command), "command %q", tc.command)
	}
}

// TestBackgroundForm strips one trailing ampersand but never splits a
// conjunction.
func TestBackgroundForm(t *testing.T) {
	body, ok := backgroundForm("sleep 60 &")
	require.True(t, ok)
	require.Equal(t, "sleep 60", body)

	body, ok = backgroundForm("sleep 60&")
	require.True(t, ok)
	require.Equal(t, "sleep 60", body)

	_, ok = backgroundForm("make && make install")
	require.False(t, ok)
	_, ok = backgroundForm("echo hi")
	require.False(t, ok)
	_, ok = backgroundForm("&")
	require.False(t, ok)
}

// TestTranslateSpecial resolves named keys and rejects unknown names.
func TestTranslateSpecial(t *testing.T) {
	cases := map[string]string{
		"Enter":     "\n",
		"Key-up":    "\x1b[A",
		"Key-down":  "\x1b[B",
		"Key-left":  "\x1b[D",
		"Key-right": "\x1b[C",
		"Ctrl-c":    "\x03",
		"Ctrl-d":    "\x04",
	}
	for name, want := range cases {
		seq, err := TranslateSpecial(name)
		require.NoError(t, err)
		require.Equal(t, want, seq)
	}
	_, err := TranslateSpecial("Ctrl-z")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown special key")
}

// TestNeedsTerminal flags interactive programs but treats screen with
// arguments as scripted use.
func TestNeedsTerminal(t *testing.T) {
	require.True(t, NeedsTerminal("vim main.go"))
	require.True(t, NeedsTerminal("top"))
	require.True(t, NeedsTerminal("screen"))
	require.False(t, NeedsTerminal("screen -ls"))
	require.False(t, NeedsTerminal("screen -X -S winx.1.1.1 quit"))
	require.False(t, NeedsTerminal("echo vim"))
	require.False(t, NeedsTerminal(""))
}

// TestLastExitStatus reads the final sentinel from a mixed output stream.
func TestLastExitStatus(t *testing.T) {
	code, ok := LastExitStatus("hello\nWINX_CMD_STATUS=0\nworld\nWINX_CMD_STATUS=2\n")
	require.True(t, ok)
	require.Equal(t, 2, code)

	_, ok = LastExitStatus("no sentinel here")
	require.False(t, ok)
}

// TestSessionEcho runs a simple command through a live bash and waits for its
// sentinel.
func TestSessionEcho(t *testing.T) {
	s, err := NewSession(nil, t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	warning, err := s.Execute("echo hello")
	require.NoError(t, err)
	require.Empty(t, warning)

	status := s.WaitStatus(10)
	require.Equal(t, StateRunning, status.State)
	require.Contains(t, status.Stdout, "hello")

	code, ok := LastExitStatus(status.Stdout)
	require.True(t, ok)
	require.Equal(t, 0, code)
}

// TestSessionStatefulness: the interactive shell always runs on plain pipes,
// so exports survive across Execute calls whether or not screen is installed.
func TestSessionStatefulness(t *testing.T) {
	s, err := NewSession(NewScreenManager(), t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Execute("export WINX_STATE_MARKER=kept")
	require.NoError(t, err)
	s.WaitStatus(10)

	_, err = s.Execute("echo $WINX_STATE_MARKER")
	require.NoError(t, err)
	status := s.WaitStatus(10)
	require.Equal(t, StateRunning, status.State)
	require.Contains(t, status.Stdout, "kept")
}

// TestSessionBackgroundWithoutScreen: a trailing & with no screen utility runs
// the command in the session itself rather than failing.
func TestSessionBackgroundWithoutScreen(t *testing.T) {
	s, err := NewSession(&ScreenManager{}, t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Execute("echo detached &")
	require.NoError(t, err)
	status := s.WaitStatus(2)
	require.Contains(t, status.Stdout, "detached")
	require.NotContains(t, status.Stdout, "running in background")
}

// TestSessionFailingCommand reports the nonzero status through the sentinel.
func TestSessionFailingCommand(t *testing.T) {
	s, err := NewSession(nil, t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Execute("false")
	require.NoError(t, err)

	status := s.WaitStatus(10)
	code, ok := LastExitStatus(status.Stdout)
	require.True(t, ok)
	require.Equal(t, 1, code)
}

// TestSessionCwdTracking: a cd updates the tracked working directory once the
// settle interval elapses.
func TestSessionCwdTracking(t *testing.T) {
	s, err := NewSession(nil, "/tmp")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Execute("cd /")
	require.NoError(t, err)
	require.Equal(t, "/", s.Cwd())
}

// TestSessionEmptyCommand is rejected before reaching the shell.
func TestSessionEmptyCommand(t *testing.T) {
	s, err := NewSession(nil, t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Execute("   ")
	require.Error(t, err)
}

// TestSessionSignals: interrupt and EOF bytes are accepted while the shell is
// live and rejected after close. Without a pty the bytes reach the child's
// stdin verbatim, so only the enqueue path is asserted here.
func TestSessionSignals(t *testing.T) {
	s, err := NewSession(nil, t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SendInterrupt())
	require.NoError(t, s.SendEOF())
	require.Error(t, s.SendASCII([]int{300}))
}

// TestSessionTerminalWarning prefixes the result when the command needs a
// real terminal.
func TestSessionTerminalWarning(t *testing.T) {
	s, err := NewSession(nil, t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	warning, err := s.Execute("top -b -n 1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(warning, "Warning: top needs a real terminal"))
}

// TestManagerSessionPerName: sessions are created lazily, shared by name and
// discarded on reset.
func TestManagerSessionPerName(t *testing.T) {
	m := NewManager(nil)
	defer m.CloseAll()

	_, ok := m.Get("full")
	require.False(t, ok)

	a, err := m.GetOrCreate("full", t.TempDir())
	require.NoError(t, err)
	b, err := m.GetOrCreate("full", t.TempDir())
	require.NoError(t, err)
	require.Same(t, a, b)

	m.Reset("full")
	_, ok = m.Get("full")
	require.False(t, ok)
}
