package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/winxlab/winx/core"
	"github.com/winxlab/winx/shell"
)

// defaultWaitSecs bounds command waits when the caller does not supply one.
const defaultWaitSecs = 5.0

type bashCommandArgs struct {
	ActionJSON     json.RawMessage `json:"action_json"`
	WaitForSeconds *float64        `json:"wait_for_seconds"`
}

// bashAction is the decoded union of the accepted action shapes. Exactly one
// variant must be populated.
type bashAction struct {
	Command      *string  `json:"command"`
	StatusCheck  bool     `json:"status_check"`
	SendText     *string  `json:"send_text"`
	SendSpecials []string `json:"send_specials"`
	SendASCII    []int    `json:"send_ascii"`
	ScreenAction string   `json:"screen_action"`
	SessionName  string   `json:"session_name"`
}

// runBashCommand drives the persistent shell session: execute, poll status,
// inject text/keys/bytes, or operate on the detachable screen session.
func runBashCommand(ctx context.Context, deps *Deps, raw json.RawMessage) (string, error) {
	var args bashCommandArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", core.NewError(core.ErrParse, "bash_command arguments: %v", err)
	}
	if len(args.ActionJSON) == 0 {
		return "", core.NewError(core.ErrInvalidArgument, "action_json is required")
	}
	var action bashAction
	if err := json.Unmarshal(args.ActionJSON, &action); err != nil {
		// action_json may arrive double-encoded as a JSON string.
		var nested string
		if strErr := json.Unmarshal(args.ActionJSON, &nested); strErr != nil {
			return "", core.NewError(core.ErrParse, "action_json: %v", err)
		}
		if err := json.Unmarshal([]byte(nested), &action); err != nil {
			return "", core.NewError(core.ErrParse, "action_json: %v", err)
		}
	}

	wait := defaultWaitSecs
	if args.WaitForSeconds != nil {
		wait = *args.WaitForSeconds
	}

	if action.ScreenAction != "" {
		return runScreenAction(deps, action)
	}

	mode := deps.Engine.Gate.Current()
	session, err := deps.Sessions.GetOrCreate(string(mode.Kind), deps.Engine.Workspace())
	if err != nil {
		return "", err
	}

	switch {
	case action.Command != nil:
		command := *action.Command
		if err := deps.Engine.Gate.Authorize(core.ActionExecuteCommand, command); err != nil {
			return "", err
		}
		warning, err := session.Execute(command)
		if err != nil {
			return "", err
		}
		status := session.WaitStatus(wait)
		session.RecoverEmptyOutput()
		status = session.Snapshot()
		return warning + renderStatus(session, status), nil

	case action.StatusCheck:
		status := session.WaitStatus(wait)
		return renderStatus(session, status), nil

	case action.SendText != nil:
		if *action.SendText == "" {
			return "", core.NewError(core.ErrInvalidArgument, "send_text must not be empty")
		}
		if err := session.SendText(*action.SendText); err != nil {
			return "", err
		}
		status := session.WaitStatus(wait)
		return renderStatus(session, status), nil

	case len(action.SendSpecials) > 0:
		if err := session.SendSpecials(action.SendSpecials); err != nil {
			return "", err
		}
		status := session.WaitStatus(wait)
		return renderStatus(session, status), nil

	case len(action.SendASCII) > 0:
		for _, code := range action.SendASCII {
			if code == 0x03 {
				if err := session.SendInterrupt(); err != nil {
					return "", err
				}
				continue
			}
			if err := session.SendASCII([]int{code}); err != nil {
				return "", err
			}
		}
		status := session.WaitStatus(wait)
		return renderStatus(session, status), nil
	}

	return "", core.NewError(core.ErrInvalidArgument,
		"action_json must contain one of command, status_check, send_text, send_specials, send_ascii or screen_action")
}

// runScreenAction handles attach/detach/content/list against the screen
// manager. Only list works without an explicit session_name; the interactive
// shell is not a screen session.
func runScreenAction(deps *Deps, action bashAction) (string, error) {
	screen := deps.Sessions.Screen()
	name := action.SessionName

	switch action.ScreenAction {
	case "list":
		sessions, err := screen.List()
		if err != nil {
			return "", err
		}
		if len(sessions) == 0 {
			return "No screen sessions.", nil
		}
		var b strings.Builder
		for _, s := range sessions {
			state := "detached"
			if s.Attached {
				state = "attached"
			}
			if s.Orphaned {
				state += ", orphaned"
			}
			fmt.Fprintf(&b, "%d.%s (%s)\n", s.PID, s.Name, state)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	case "attach":
		if name == "" {
			return "", core.NewError(core.ErrInvalidArgument, "no session to attach; provide session_name")
		}
		cmd, err := screen.AttachCommand(name)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Run %q in a terminal to attach.", cmd), nil
	case "detach":
		if name == "" {
			return "", core.NewError(core.ErrInvalidArgument, "no session to detach; provide session_name")
		}
		if err := screen.Detach(name); err != nil {
			return "", err
		}
		return fmt.Sprintf("Detached %s.", name), nil
	case "content":
		if name == "" {
			return "", core.NewError(core.ErrInvalidArgument, "no session to read; provide session_name")
		}
		return screen.Content(name)
	}
	return "", core.NewError(core.ErrInvalidArgument,
		"unknown screen_action %q (expected attach, detach, content or list)", action.ScreenAction)
}

// renderStatus formats the session state plus buffers, surfacing the sentinel
// exit status when one is present.
func renderStatus(session *shell.Session, status shell.Status) string {
	var b strings.Builder
	switch status.State {
	case shell.StateRunning:
		if code, ok := shell.LastExitStatus(status.Stdout); ok {
			fmt.Fprintf(&b, "status = process exited with code %d\n", code)
		} else {
			b.WriteString("status = still running\n")
		}
	case shell.StateExited:
		fmt.Fprintf(&b, "status = shell exited with code %d\n", status.ExitCode)
	default:
		b.WriteString("status = shell not running\n")
	}
	fmt.Fprintf(&b, "cwd = %s\n", session.Cwd())
	if status.Stdout != "" {
		b.WriteString(status.Stdout)
		if !strings.HasSuffix(status.Stdout, "\n") {
			b.WriteString("\n")
		}
	}
	if status.Stderr != "" {
		b.WriteString("--- stderr ---\n")
		b.WriteString(status.Stderr)
	}
	return strings.TrimRight(b.String(), "\n")
}
