// Package tools is the typed operation surface the transport exposes: a
// registry of named tools dispatching onto the shell, edit, whitelist and
// learning cores.
package tools

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/winxlab/winx/core"
	"github.com/winxlab/winx/learning"
	"github.com/winxlab/winx/persistence"
	"github.com/winxlab/winx/shell"
	"github.com/winxlab/winx/telemetry"
)

// Deps are the process-wide singletons every tool shares.
type Deps struct {
	Engine      *core.Engine
	Sessions    *shell.Manager
	Selector    *learning.Selector
	Contexts    *persistence.ContextStore
	Events      telemetry.Sink
	MaxFileSize int64

	tracker stateTracker
}

// Handler executes one tool against raw JSON arguments.
type Handler func(ctx context.Context, deps *Deps, args json.RawMessage) (string, error)

// Tool is a registered operation.
type Tool struct {
	Name        string
	Description string
	Handler     Handler
	// SkipInitCheck exempts the tool from the initialization latch. Only
	// initialize sets this.
	SkipInitCheck bool
}

// Registry dispatches tool calls by name, applying the initialization latch
// and emitting telemetry around every call.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	deps  *Deps
}

// NewRegistry wires the default tool set.
func NewRegistry(deps *Deps) *Registry {
	if deps.Events == nil {
		deps.Events = telemetry.Discard{}
	}
	if deps.MaxFileSize <= 0 {
		deps.MaxFileSize = maxReadBytes
	}
	r := &Registry{tools: make(map[string]*Tool), deps: deps}
	r.Register(&Tool{Name: "initialize", Description: "Set mode and workspace; must be called first.", Handler: runInitialize, SkipInitCheck: true})
	r.Register(&Tool{Name: "bash_command", Description: "Run or inspect a command in the persistent shell.", Handler: runBashCommand})
	r.Register(&Tool{Name: "read_files", Description: "Read files with optional line ranges.", Handler: runReadFiles})
	r.Register(&Tool{Name: "write_if_empty", Description: "Create a file only when missing or empty.", Handler: runWriteIfEmpty})
	r.Register(&Tool{Name: "file_edit", Description: "Apply search/replace blocks to a read file.", Handler: runFileEdit})
	r.Register(&Tool{Name: "read_image", Description: "Read an image as a data URI.", Handler: runReadImage})
	r.Register(&Tool{Name: "context_save", Description: "Persist a task context snapshot.", Handler: runContextSave})
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	r.tools[tool.Name] = tool
	r.mu.Unlock()
}

// Names lists registered tools in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Dispatch runs the named tool. Every non-exempt tool first passes the
// initialization latch; each call feeds the selector's state tracker and the
// telemetry stream.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (string, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		return "", core.NewError(core.ErrInvalidArgument, "unknown tool %q", name)
	}
	if !tool.SkipInitCheck {
		if err := r.deps.Engine.Gate.RequireInitialized(); err != nil {
			return "", err
		}
	}

	r.deps.Events.Emit(telemetry.Event{Type: telemetry.EventToolCall, Tool: name})
	prev := r.deps.tracker.State()
	started := time.Now()

	result, err := tool.Handler(ctx, r.deps, args)

	elapsed := time.Since(started)
	outcome := learning.OutcomeSuccess
	if err != nil {
		outcome = learning.OutcomeFailure
		r.deps.tracker.RecordError()
		if core.KindOf(err) == core.ErrPermissionDenied {
			r.deps.Events.Emit(telemetry.Event{
				Type: telemetry.EventPermissionDeny, Tool: name, Message: err.Error(),
			})
		}
		r.deps.Events.Emit(telemetry.Event{
			Type: telemetry.EventToolError, Tool: name, Message: err.Error(),
			Metadata: map[string]any{"duration_ms": elapsed.Milliseconds()},
		})
	} else {
		r.deps.Events.Emit(telemetry.Event{
			Type: telemetry.EventToolResult, Tool: name,
			Metadata: map[string]any{"duration_ms": elapsed.Milliseconds()},
		})
	}

	if r.deps.Selector != nil {
		next := r.deps.tracker.State()
		reward := r.deps.Selector.Observe(prev, actionForTool(name, args), outcome, next)
		r.deps.Events.Emit(telemetry.Event{
			Type: telemetry.EventSelectorUpdate, Tool: name,
			Metadata: map[string]any{"reward": reward, "epsilon": r.deps.Selector.Epsilon()},
		})
	}
	return result, err
}

// actionForTool maps a tool call onto the selector's action space.
func actionForTool(name string, args json.RawMessage) learning.Action {
	var probe struct {
		FilePath string `json:"file_path"`
		Action   string `json:"action_json"`
	}
	_ = json.Unmarshal(args, &probe)
	switch name {
	case "read_files", "read_image":
		return learning.Action{Kind: learning.ActReadFile, Path: probe.FilePath}
	case "write_if_empty":
		return learning.Action{Kind: learning.ActWriteFile, Path: probe.FilePath}
	case "file_edit":
		return learning.Action{Kind: learning.ActEditFile, Path: probe.FilePath}
	case "bash_command":
		return learning.Action{Kind: learning.ActExecuteCommand}
	case "context_save":
		return learning.Action{Kind: learning.ActAnalyzeCode}
	}
	return learning.Action{Kind: learning.ActNoOp}
}

// stateTracker maintains the observable state fed to the selector.
type stateTracker struct {
	mu       sync.Mutex
	files    map[string]bool
	errors   int
	warnings int
}

func (t *stateTracker) RecordFile(path string) {
	t.mu.Lock()
	if t.files == nil {
		t.files = make(map[string]bool)
	}
	t.files[path] = true
	t.mu.Unlock()
}

func (t *stateTracker) RecordError() {
	t.mu.Lock()
	t.errors++
	t.mu.Unlock()
}

func (t *stateTracker) RecordWarnings(n int) {
	t.mu.Lock()
	t.warnings += n
	t.mu.Unlock()
}

func (t *stateTracker) State() learning.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return learning.State{
		FileCount:    len(t.files),
		ErrorCount:   t.errors,
		WarningCount: t.warnings,
		BuildSuccess: t.errors == 0,
	}
}
