package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/winxlab/winx/core"
	"github.com/winxlab/winx/learning"
	"github.com/winxlab/winx/persistence"
	"github.com/winxlab/winx/shell"
	"github.com/winxlab/winx/telemetry"
)

type fixture struct {
	registry  *Registry
	deps      *Deps
	workspace string
	events    *telemetry.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	events := telemetry.NewMemory(0)
	store, err := persistence.NewContextStore(t.TempDir())
	require.NoError(t, err)
	deps := &Deps{
		Engine:   core.NewEngine(),
		Sessions: shell.NewManager(&shell.ScreenManager{}),
		Selector: learning.NewSelector(1),
		Contexts: store,
		Events:   events,
	}
	t.Cleanup(deps.Sessions.CloseAll)
	return &fixture{
		registry:  NewRegistry(deps),
		deps:      deps,
		workspace: t.TempDir(),
		events:    events,
	}
}

func (f *fixture) dispatch(t *testing.T, tool string, args any) (string, error) {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return f.registry.Dispatch(context.Background(), tool, raw)
}

func (f *fixture) initialize(t *testing.T) {
	t.Helper()
	_, err := f.dispatch(t, "initialize", map[string]any{
		"type":           "first_call",
		"workspace_path": f.workspace,
	})
	require.NoError(t, err)
}

func (f *fixture) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.workspace, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestDispatchRequiresInitialize: every tool except initialize is rejected
// until the latch is set.
func TestDispatchRequiresInitialize(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatch(t, "read_files", map[string]any{"file_paths": []string{"a.txt"}})
	require.Error(t, err)
	require.Equal(t, core.ErrInitializationRequired, core.KindOf(err))
}

// TestDispatchUnknownTool names the offender.
func TestDispatchUnknownTool(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatch(t, "no_such_tool", map[string]any{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no_such_tool")
}

// TestRegistryNames lists the built-in tool set sorted.
func TestRegistryNames(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, []string{
		"bash_command", "context_save", "file_edit", "initialize",
		"read_files", "read_image", "write_if_empty",
	}, f.registry.Names())
}

// TestInitializeReportsModeAndWorkspace and reads the requested files inline.
func TestInitializeReportsModeAndWorkspace(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "hello.txt", "greetings\n")
	out, err := f.dispatch(t, "initialize", map[string]any{
		"type":                  "first_call",
		"workspace_path":        f.workspace,
		"initial_files_to_read": []string{"hello.txt"},
	})
	require.NoError(t, err)
	require.Contains(t, out, "Initialized in full mode.")
	require.Contains(t, out, f.workspace)
	require.Contains(t, out, "greetings")
}

// TestInitializeCodeWriterRequiresConfig rejects the constrained mode without
// its glob and command lists.
func TestInitializeCodeWriterRequiresConfig(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatch(t, "initialize", map[string]any{
		"type":           "first_call",
		"workspace_path": f.workspace,
		"mode_name":      "code_writer",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "code_writer_config")
}

// TestReadOnlyModeDeniesWrites: architect mode can read but never write.
func TestReadOnlyModeDeniesWrites(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatch(t, "initialize", map[string]any{
		"type":           "first_call",
		"workspace_path": f.workspace,
		"mode_name":      "read_only",
	})
	require.NoError(t, err)

	_, err = f.dispatch(t, "write_if_empty", map[string]any{
		"file_path":    "new.txt",
		"file_content": "x",
	})
	require.Error(t, err)
	require.Equal(t, core.ErrPermissionDenied, core.KindOf(err))

	f.writeFile(t, "read.txt", "ok\n")
	out, err := f.dispatch(t, "read_files", map[string]any{"file_paths": []string{"read.txt"}})
	require.NoError(t, err)
	require.Contains(t, out, "ok")

	denied := false
	for _, e := range f.events.Events() {
		if e.Type == telemetry.EventPermissionDeny {
			denied = true
		}
	}
	require.True(t, denied, "a permission_deny event should be emitted")
}

// TestReadFilesRangeAndNumbers honors trailing :start-end and the numbering
// request.
func TestReadFilesRangeAndNumbers(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.writeFile(t, "nums.txt", "one\ntwo\nthree\nfour\n")

	out, err := f.dispatch(t, "read_files", map[string]any{
		"file_paths":               []string{"nums.txt:2-3"},
		"show_line_numbers_reason": "edit planned",
	})
	require.NoError(t, err)
	require.Contains(t, out, "2\ttwo")
	require.Contains(t, out, "3\tthree")
	require.NotContains(t, out, "one")
	require.NotContains(t, out, "four")
}

// TestReadFilesCollectsPerPathErrors: one bad path does not fail the batch.
func TestReadFilesCollectsPerPathErrors(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.writeFile(t, "good.txt", "fine\n")

	out, err := f.dispatch(t, "read_files", map[string]any{
		"file_paths": []string{"good.txt", "missing.txt"},
	})
	require.NoError(t, err)
	require.Contains(t, out, "fine")
	require.Contains(t, out, "Error:")
}

// TestReadFilesTruncatesOversized: an unbounded read of a file larger than
// the limit returns the first 500 lines plus a warning.
func TestReadFilesTruncatesOversized(t *testing.T) {
	f := newFixture(t)
	f.deps.MaxFileSize = 100
	f.initialize(t)

	var b strings.Builder
	for i := 1; i <= 600; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	f.writeFile(t, "big.txt", b.String())

	out, err := f.dispatch(t, "read_files", map[string]any{"file_paths": []string{"big.txt"}})
	require.NoError(t, err)
	require.Contains(t, out, "line 500")
	require.NotContains(t, out, "line 501")
	require.Contains(t, out, "only the first 500 lines are shown")
}

// TestWriteIfEmptyRoundtrip creates a file once and refuses the second write.
func TestWriteIfEmptyRoundtrip(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	out, err := f.dispatch(t, "write_if_empty", map[string]any{
		"file_path":    "pkg/new.go",
		"file_content": "package pkg\n",
	})
	require.NoError(t, err)
	require.Contains(t, out, "Wrote 12 bytes")

	data, err := os.ReadFile(filepath.Join(f.workspace, "pkg/new.go"))
	require.NoError(t, err)
	require.Equal(t, "package pkg\n", string(data))

	_, err = f.dispatch(t, "write_if_empty", map[string]any{
		"file_path":    "pkg/new.go",
		"file_content": "other\n",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "use file_edit")
}

// TestEditUnreadFileFails: editing before reading surfaces the unread ranges
// and the current content.
func TestEditUnreadFileFails(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.writeFile(t, "code.txt", "alpha\nbeta\n")

	_, err := f.dispatch(t, "file_edit", map[string]any{
		"file_path": "code.txt",
		"file_edit_using_search_replace_blocks": "<<<<<<< SEARCH\nalpha\n=======\nomega\n>>>>>>> REPLACE\n",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "re-read")
	require.Contains(t, err.Error(), "alpha\nbeta")
}

// TestEditMissingFilePointsAtWrite: a nonexistent target names the creation
// tool instead.
func TestEditMissingFilePointsAtWrite(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	_, err := f.dispatch(t, "file_edit", map[string]any{
		"file_path": "ghost.txt",
		"file_edit_using_search_replace_blocks": "<<<<<<< SEARCH\nx\n=======\ny\n>>>>>>> REPLACE\n",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "write_if_empty")
}

// TestReadThenEditRoundtrip is the canonical workflow: read whitelists the
// file, the edit applies, and a follow-up edit stays eligible.
func TestReadThenEditRoundtrip(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.writeFile(t, "code.txt", "alpha\nbeta\n")

	_, err := f.dispatch(t, "read_files", map[string]any{"file_paths": []string{"code.txt"}})
	require.NoError(t, err)

	out, err := f.dispatch(t, "file_edit", map[string]any{
		"file_path": "code.txt",
		"file_edit_using_search_replace_blocks": "<<<<<<< SEARCH\nalpha\n=======\nomega\n>>>>>>> REPLACE\n",
	})
	require.NoError(t, err)
	require.Contains(t, out, "1 of 1 blocks applied")

	data, err := os.ReadFile(filepath.Join(f.workspace, "code.txt"))
	require.NoError(t, err)
	require.Equal(t, "omega\nbeta", string(data))

	out, err = f.dispatch(t, "file_edit", map[string]any{
		"file_path": "code.txt",
		"file_edit_using_search_replace_blocks": "<<<<<<< SEARCH\nbeta\n=======\ngamma\n>>>>>>> REPLACE\n",
	})
	require.NoError(t, err)
	require.Contains(t, out, "1 of 1 blocks applied")
}

// TestReadImageDataURI encodes the bytes with the extension's MIME type.
func TestReadImageDataURI(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.writeFile(t, "pix.png", "\x89PNG\r\n")

	out, err := f.dispatch(t, "read_image", map[string]any{"file_path": "pix.png"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "data:image/png;base64,"))

	f.writeFile(t, "blob.bin", "xx")
	out, err = f.dispatch(t, "read_image", map[string]any{"file_path": "blob.bin"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "data:application/octet-stream;base64,"))
}

// TestContextSaveAndResume persists a snapshot then resumes it through a
// fresh registry sharing the store.
func TestContextSaveAndResume(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.writeFile(t, "main.go", "package main\n")

	out, err := f.dispatch(t, "context_save", map[string]any{
		"id":                  "refactor-parser",
		"description":         "split the parser\ninto smaller pieces",
		"relevant_file_globs": []string{"*.go"},
	})
	require.NoError(t, err)
	require.Contains(t, out, "Saved context refactor-parser (1 files embedded)")
	require.Equal(t, "refactor-parser", f.deps.Engine.TaskID())

	other := &Deps{
		Engine:   core.NewEngine(),
		Sessions: shell.NewManager(&shell.ScreenManager{}),
		Contexts: f.deps.Contexts,
	}
	t.Cleanup(other.Sessions.CloseAll)
	registry := NewRegistry(other)
	raw, _ := json.Marshal(map[string]any{
		"type":              "first_call",
		"workspace_path":    f.workspace,
		"task_id_to_resume": "refactor-parser",
	})
	resumed, err := registry.Dispatch(context.Background(), "initialize", raw)
	require.NoError(t, err)
	require.Contains(t, resumed, "Resumed task refactor-parser")
	require.Contains(t, resumed, "split the parser")
	require.Contains(t, resumed, "package main")
}

// TestBashCommandEcho runs a command through the persistent shell and renders
// its sentinel status.
func TestBashCommandEcho(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	out, err := f.dispatch(t, "bash_command", map[string]any{
		"action_json":      map[string]any{"command": "echo tools-test"},
		"wait_for_seconds": 10,
	})
	require.NoError(t, err)
	require.Contains(t, out, "tools-test")
	require.Contains(t, out, "process exited with code 0")
	require.Contains(t, out, "cwd = ")
}

// TestBashCommandDoubleEncodedAction accepts action_json delivered as a JSON
// string.
func TestBashCommandDoubleEncodedAction(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)

	out, err := f.dispatch(t, "bash_command", map[string]any{
		"action_json":      `{"command":"echo nested"}`,
		"wait_for_seconds": 10,
	})
	require.NoError(t, err)
	require.Contains(t, out, "nested")
}

// TestBashCommandRejectsEmptyAction requires exactly one variant.
func TestBashCommandRejectsEmptyAction(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	_, err := f.dispatch(t, "bash_command", map[string]any{
		"action_json": map[string]any{},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "must contain one of")
}

// TestDispatchEmitsTelemetry surrounds every call with call/result events and
// a selector update.
func TestDispatchEmitsTelemetry(t *testing.T) {
	f := newFixture(t)
	f.initialize(t)
	f.writeFile(t, "t.txt", "x\n")
	_, err := f.dispatch(t, "read_files", map[string]any{"file_paths": []string{"t.txt"}})
	require.NoError(t, err)

	var types []telemetry.EventType
	for _, e := range f.events.Events() {
		if e.Tool == "read_files" {
			types = append(types, e.Type)
		}
	}
	require.Contains(t, types, telemetry.EventToolCall)
	require.Contains(t, types, telemetry.EventToolResult)
	require.Contains(t, types, telemetry.EventSelectorUpdate)
}
