package shell

import (
	"fmt"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewSessionID generates distinct ids in the winx.<pid>.<time>.<n> shape.
func TestNewSessionID(t *testing.T) {
	shape := regexp.MustCompile(`^winx\.\d+\.\d+\.\d+$`)
	a := NewSessionID()
	b := NewSessionID()
	require.Regexp(t, shape, a)
	require.Regexp(t, shape, b)
	require.NotEqual(t, a, b)
}

// TestParseScreenList extracts pid, name and attach state from screen -ls
// output, skipping the banner and socket-count lines.
func TestParseScreenList(t *testing.T) {
	out := "There are screens on:\n" +
		"\t12345.build\t(Detached)\n" +
		"\t23456.deploy\t(Attached)\n" +
		"2 Sockets in /run/screen/S-user.\n"
	sessions := parseScreenList(out)
	require.Len(t, sessions, 2)
	require.Equal(t, ScreenSession{PID: 12345, Name: "build"}, sessions[0])
	require.Equal(t, ScreenSession{PID: 23456, Name: "deploy", Attached: true}, sessions[1])
}

// TestParseScreenListHostSuffix strips the @host decoration some screen
// builds append to the pid field.
func TestParseScreenListHostSuffix(t *testing.T) {
	sessions := parseScreenList("\t4242@host1.build\t(Detached)\n")
	require.Len(t, sessions, 1)
	require.Equal(t, 4242, sessions[0].PID)
	require.Equal(t, "build", sessions[0].Name)
}

// TestParseScreenListOrphans marks winx-prefixed sessions by the owner pid
// embedded in the name, not the screen server's row pid. Detached servers
// daemonize under init, so a live owner must survive a dead-looking row pid
// and a dead owner must be caught even when the server row is alive.
func TestParseScreenListOrphans(t *testing.T) {
	out := fmt.Sprintf("\t999999.winx.%d.1.1\t(Detached)\n\t%d.winx.999999.2.2\t(Detached)\n\t999999.other\t(Detached)\n",
		os.Getpid(), os.Getpid())
	sessions := parseScreenList(out)
	require.Len(t, sessions, 3)
	require.False(t, sessions[0].Orphaned, "live owner must not be orphaned")
	require.True(t, sessions[1].Orphaned, "dead owner must be orphaned")
	require.False(t, sessions[2].Orphaned, "foreign sessions are not inspected")
}

// TestOwnerPID parses the owner pid out of winx session names.
func TestOwnerPID(t *testing.T) {
	pid, ok := ownerPID("winx.4242.17.3")
	require.True(t, ok)
	require.Equal(t, 4242, pid)

	_, ok = ownerPID("build")
	require.False(t, ok)
	_, ok = ownerPID("winx.notapid.1.1")
	require.False(t, ok)
}

// TestParseScreenListGarbage tolerates lines with no parseable pid.
func TestParseScreenListGarbage(t *testing.T) {
	require.Empty(t, parseScreenList("no sessions\n.leadingdot\nnotapid.name\n"))
}

// TestScreenManagerUnavailable returns structured errors instead of invoking
// a missing binary.
func TestScreenManagerUnavailable(t *testing.T) {
	m := &ScreenManager{}
	require.False(t, m.Available())
	require.Error(t, m.StartDetached("winx.1.1.1", t.TempDir(), "true"))
	_, err := m.List()
	require.Error(t, err)
	_, err = m.Content("winx.1.1.1")
	require.Error(t, err)
	require.Error(t, m.Detach("winx.1.1.1"))
	require.Error(t, m.Kill("winx.1.1.1"))
}
