package core

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// ModeKind names one of the three permission policies.
type ModeKind string

const (
	ModeFull        ModeKind = "full"
	ModeReadOnly    ModeKind = "read_only"
	ModeConstrained ModeKind = "code_writer"
)

// Action names an operation checked against the active mode.
type Action string

const (
	ActionReadFile       Action = "read_file"
	ActionReadImage      Action = "read_image"
	ActionWriteFile      Action = "write_file"
	ActionEditFile       Action = "edit_file"
	ActionExecuteCommand Action = "execute_command"
	ActionSaveContext    Action = "save_context"
)

// Mode is the process-wide policy variant. AllowedGlobs and AllowedCommands
// are only consulted for ModeConstrained.
type Mode struct {
	Kind            ModeKind
	AllowedGlobs    []string
	AllowedCommands []string
}

// ParseModeKind maps a wire-level mode name to its variant.
func ParseModeKind(name string) (ModeKind, error) {
	switch name {
	case string(ModeFull):
		return ModeFull, nil
	case string(ModeReadOnly), "architect":
		return ModeReadOnly, nil
	case string(ModeConstrained), "constrained":
		return ModeConstrained, nil
	}
	return "", NewError(ErrInvalidArgument, "unknown mode %q (expected full, read_only or code_writer)", name)
}

// ModeGate holds the active mode and the one-shot initialization latch.
// The mode is replaced atomically under the gate's lock; the latch is an
// atomic flag so hot-path checks avoid the lock entirely.
type ModeGate struct {
	mu          sync.RWMutex
	mode        Mode
	initialized atomic.Bool
}

// NewModeGate starts in Full mode with the latch unset.
func NewModeGate() *ModeGate {
	return &ModeGate{mode: Mode{Kind: ModeFull}}
}

// Initialized reports whether the latch has been set.
func (g *ModeGate) Initialized() bool { return g.initialized.Load() }

// MarkInitialized sets the latch. Idempotent.
func (g *ModeGate) MarkInitialized() { g.initialized.Store(true) }

// RequireInitialized fails with InitializationRequired while the latch is
// unset. Every non-initialize operation calls this first.
func (g *ModeGate) RequireInitialized() error {
	if !g.initialized.Load() {
		return InitRequired()
	}
	return nil
}

// SetMode replaces the whole mode variant under one lock.
func (g *ModeGate) SetMode(mode Mode) {
	g.mu.Lock()
	g.mode = mode
	g.mu.Unlock()
}

// Current returns a copy of the active mode.
func (g *ModeGate) Current() Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	mode := g.mode
	mode.AllowedGlobs = append([]string(nil), g.mode.AllowedGlobs...)
	mode.AllowedCommands = append([]string(nil), g.mode.AllowedCommands...)
	return mode
}

// Authorize checks action/target against the permission matrix. target is a
// path for file actions and the full command line for ActionExecuteCommand.
func (g *ModeGate) Authorize(action Action, target string) error {
	g.mu.RLock()
	mode := g.mode
	g.mu.RUnlock()

	switch action {
	case ActionReadFile, ActionReadImage, ActionSaveContext:
		return nil
	}

	switch mode.Kind {
	case ModeFull:
		return nil
	case ModeReadOnly:
		return &AgentError{
			Kind:    ErrPermissionDenied,
			Message: fmt.Sprintf("%s is not permitted in read-only mode", action),
			Path:    target,
		}
	case ModeConstrained:
		switch action {
		case ActionWriteFile, ActionEditFile:
			for _, pattern := range mode.AllowedGlobs {
				if MatchGlob(pattern, target) {
					return nil
				}
			}
			return &AgentError{
				Kind:    ErrPermissionDenied,
				Message: fmt.Sprintf("path does not match any allowed glob (%s)", strings.Join(mode.AllowedGlobs, ", ")),
				Path:    target,
			}
		case ActionExecuteCommand:
			first := firstToken(target)
			for _, allowed := range mode.AllowedCommands {
				if allowed == "all" || allowed == first {
					return nil
				}
			}
			return &AgentError{
				Kind:    ErrPermissionDenied,
				Message: fmt.Sprintf("command %q is not in the allowed set (%s)", first, strings.Join(mode.AllowedCommands, ", ")),
			}
		}
	}
	return nil
}

func firstToken(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
