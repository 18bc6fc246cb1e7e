package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestInitializationLatch verifies the one-shot latch gates operations until
// set.
func TestInitializationLatch(t *testing.T) {
	gate := NewModeGate()
	err := gate.RequireInitialized()
	require.Error(t, err)
	require.Equal(t, ErrInitializationRequired, KindOf(err))

	gate.MarkInitialized()
	require.NoError(t, gate.RequireInitialized())
	gate.MarkInitialized() // idempotent
	require.NoError(t, gate.RequireInitialized())
}

// TestPermissionMatrix exercises every action against every mode variant.
func TestPermissionMatrix(t *testing.T) {
	constrained := Mode{
		Kind:            ModeConstrained,
		AllowedGlobs:    []string{"/workspace/src/**/*.go"},
		AllowedCommands: []string{"go", "ls"},
	}
	cases := []struct {
		name   string
		mode   Mode
		action Action
		target string
		allow  bool
	}{
		{"full write", Mode{Kind: ModeFull}, ActionWriteFile, "/etc/anything", true},
		{"full exec", Mode{Kind: ModeFull}, ActionExecuteCommand, "rm -rf /tmp/x", true},
		{"readonly read", Mode{Kind: ModeReadOnly}, ActionReadFile, "/workspace/a.go", true},
		{"readonly image", Mode{Kind: ModeReadOnly}, ActionReadImage, "/workspace/a.png", true},
		{"readonly save", Mode{Kind: ModeReadOnly}, ActionSaveContext, "task-1", true},
		{"readonly write", Mode{Kind: ModeReadOnly}, ActionWriteFile, "/workspace/a.go", false},
		{"readonly edit", Mode{Kind: ModeReadOnly}, ActionEditFile, "/workspace/a.go", false},
		{"readonly exec", Mode{Kind: ModeReadOnly}, ActionExecuteCommand, "ls", false},
		{"constrained edit in glob", constrained, ActionEditFile, "/workspace/src/pkg/main.go", true},
		{"constrained edit outside glob", constrained, ActionEditFile, "/workspace/README.md", false},
		{"constrained allowed command", constrained, ActionExecuteCommand, "go test ./...", true},
		{"constrained denied command", constrained, ActionExecuteCommand, "rm -rf /", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := NewModeGate()
			gate.SetMode(tc.mode)
			err := gate.Authorize(tc.action, tc.target)
			if tc.allow {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				require.Equal(t, ErrPermissionDenied, KindOf(err))
			}
		})
	}
}

// TestConstrainedAllWildcard confirms "all" admits any command.
func TestConstrainedAllWildcard(t *testing.T) {
	gate := NewModeGate()
	gate.SetMode(Mode{Kind: ModeConstrained, AllowedCommands: []string{"all"}})
	require.NoError(t, gate.Authorize(ActionExecuteCommand, "arbitrary --flags"))
}

// TestSetModeReplacesWholeVariant checks mode replacement is wholesale, not
// a field merge.
func TestSetModeReplacesWholeVariant(t *testing.T) {
	gate := NewModeGate()
	gate.SetMode(Mode{Kind: ModeConstrained, AllowedGlobs: []string{"**/*.go"}})
	gate.SetMode(Mode{Kind: ModeReadOnly})
	current := gate.Current()
	require.Equal(t, ModeReadOnly, current.Kind)
	require.Empty(t, current.AllowedGlobs)
}

// TestParseModeKind covers the accepted wire names.
func TestParseModeKind(t *testing.T) {
	for name, want := range map[string]ModeKind{
		"full":        ModeFull,
		"read_only":   ModeReadOnly,
		"architect":   ModeReadOnly,
		"code_writer": ModeConstrained,
		"constrained": ModeConstrained,
	} {
		got, err := ParseModeKind(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got)
	}
	_, err := ParseModeKind("bogus")
	require.Error(t, err)
	require.Equal(t, ErrInvalidArgument, KindOf(err))
}

// TestMatchGlob covers the recursive pattern support the constrained mode
// relies on.
func TestMatchGlob(t *testing.T) {
	require.True(t, MatchGlob("**/*.go", "a/b/c/d.go"))
	require.True(t, MatchGlob("src/*.go", "src/main.go"))
	require.False(t, MatchGlob("src/*.go", "src/sub/main.go"))
	require.True(t, MatchGlob("*", "anything"))
	require.False(t, MatchGlob("", "anything"))
	require.True(t, MatchGlob("/ws/**", "/ws/deep/file.txt"))
}
