package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/winxlab/winx/core"
	"github.com/winxlab/winx/telemetry"
)

// initializeArgs is the wire shape of the initialize operation.
type initializeArgs struct {
	Type               string   `json:"type"` // first_call | user_asked_mode_change | reset_shell
	WorkspacePath      string   `json:"workspace_path"`
	InitialFilesToRead []string `json:"initial_files_to_read"`
	TaskIDToResume     string   `json:"task_id_to_resume"`
	ModeName           string   `json:"mode_name"`
	CodeWriterConfig   *struct {
		AllowedGlobs    []string `json:"allowed_globs"`
		AllowedCommands []string `json:"allowed_commands"`
	} `json:"code_writer_config"`
}

// runInitialize sets the process mode and workspace, reads any requested
// initial files into the whitelist, optionally resumes a saved task, and sets
// the one-shot latch. Idempotent: repeated calls replace the mode atomically.
func runInitialize(ctx context.Context, deps *Deps, raw json.RawMessage) (string, error) {
	var args initializeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", core.NewError(core.ErrParse, "initialize arguments: %v", err)
	}
	if args.ModeName == "" {
		args.ModeName = string(core.ModeFull)
	}
	kind, err := core.ParseModeKind(args.ModeName)
	if err != nil {
		return "", err
	}
	mode := core.Mode{Kind: kind}
	if kind == core.ModeConstrained {
		if args.CodeWriterConfig == nil {
			return "", core.NewError(core.ErrInvalidArgument, "code_writer mode requires code_writer_config")
		}
		mode.AllowedGlobs = args.CodeWriterConfig.AllowedGlobs
		mode.AllowedCommands = args.CodeWriterConfig.AllowedCommands
	}

	workspace := args.WorkspacePath
	if workspace == "" {
		if wd, wdErr := os.Getwd(); wdErr == nil {
			workspace = wd
		}
	}
	workspace, err = filepath.Abs(workspace)
	if err != nil {
		return "", core.NewError(core.ErrInvalidPath, "workspace path: %v", err)
	}

	previous := deps.Engine.Gate.Current()
	modeChanged := deps.Engine.Gate.Initialized() && previous.Kind != mode.Kind

	deps.Engine.Gate.SetMode(mode)
	deps.Engine.SetWorkspace(workspace)

	if modeChanged || args.Type == "reset_shell" {
		// A mode change or explicit reset abandons the running shell so the
		// new policy applies from a clean session.
		deps.Sessions.Reset(string(previous.Kind))
		deps.Sessions.Reset(string(mode.Kind))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Initialized in %s mode.\nWorkspace: %s\n", mode.Kind, workspace)

	for _, raw := range args.InitialFilesToRead {
		req, parseErr := core.ParsePathRequest(raw)
		if parseErr != nil {
			fmt.Fprintf(&b, "\nCould not parse %q: %v\n", raw, parseErr)
			continue
		}
		path := absolutize(workspace, req.Path)
		content, readErr := readRange(deps, path, req.Start, req.End, false)
		if readErr != nil {
			fmt.Fprintf(&b, "\nCould not read %s: %v\n", path, readErr)
			continue
		}
		deps.tracker.RecordFile(path)
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", path, content)
	}

	if args.TaskIDToResume != "" {
		if deps.Contexts == nil {
			fmt.Fprintf(&b, "\nTask resume unavailable: no context store configured.\n")
		} else if body, loadErr := deps.Contexts.Load(args.TaskIDToResume); loadErr != nil {
			fmt.Fprintf(&b, "\nCould not resume task %q: %v\n", args.TaskIDToResume, loadErr)
		} else {
			deps.Engine.SetTaskID(args.TaskIDToResume)
			fmt.Fprintf(&b, "\nResumed task %s:\n%s\n", args.TaskIDToResume, body)
		}
	}

	deps.Engine.Gate.MarkInitialized()
	deps.Events.Emit(telemetry.Event{
		Type:    telemetry.EventModeChange,
		Message: string(mode.Kind),
		Metadata: map[string]any{
			"workspace": workspace,
			"type":      args.Type,
		},
	})
	return b.String(), nil
}

// absolutize resolves path against the workspace when relative.
func absolutize(workspace, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workspace, path)
}
