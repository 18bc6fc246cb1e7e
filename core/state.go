package core

import (
	"sync"
)

// Engine is the process-wide shared state handed to the transport handler.
// Each field guards itself; Engine methods hold at most one lock at a time.
type Engine struct {
	Gate      *ModeGate
	Whitelist *ReadWhitelist

	mu        sync.RWMutex
	workspace string
	taskID    string

	fileLocks sync.Map // path -> *sync.RWMutex
}

// NewEngine wires a fresh gate and whitelist.
func NewEngine() *Engine {
	return &Engine{
		Gate:      NewModeGate(),
		Whitelist: NewReadWhitelist(),
	}
}

// SetWorkspace records the active workspace root.
func (e *Engine) SetWorkspace(path string) {
	e.mu.Lock()
	e.workspace = path
	e.mu.Unlock()
}

// Workspace returns the active workspace root.
func (e *Engine) Workspace() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.workspace
}

// SetTaskID records the resumed or active task identifier.
func (e *Engine) SetTaskID(id string) {
	e.mu.Lock()
	e.taskID = id
	e.mu.Unlock()
}

// TaskID returns the active task identifier, empty when none.
func (e *Engine) TaskID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.taskID
}

// FileLock returns the per-path read-write lock. Reads take RLock, edits take
// Lock. There is no atomic upgrade; callers release and reacquire.
func (e *Engine) FileLock(path string) *sync.RWMutex {
	actual, _ := e.fileLocks.LoadOrStore(path, &sync.RWMutex{})
	return actual.(*sync.RWMutex)
}
