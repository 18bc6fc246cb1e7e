// Package shell owns the long-lived interactive subprocess: spawning (screen
// backed when available), buffered output capture, input and signal injection,
// and detachable-session bookkeeping.
package shell

import (
	"strings"

	"github.com/winxlab/winx/core"
)

// specialKeys maps wire-level key names to the byte sequences injected into
// the session's stdin.
var specialKeys = map[string]string{
	"Enter":     "\n",
	"Key-up":    "\x1b[A",
	"Key-down":  "\x1b[B",
	"Key-left":  "\x1b[D",
	"Key-right": "\x1b[C",
	"Ctrl-c":    "\x03",
	"Ctrl-d":    "\x04",
}

// TranslateSpecial resolves a named key to its escape sequence.
func TranslateSpecial(name string) (string, error) {
	seq, ok := specialKeys[name]
	if !ok {
		names := make([]string, 0, len(specialKeys))
		for k := range specialKeys {
			names = append(names, k)
		}
		return "", core.NewError(core.ErrInvalidArgument,
			"unknown special key %q (known keys: %s)", name, strings.Join(names, ", "))
	}
	return seq, nil
}

// interactiveCommands lists first tokens that need a real terminal. Running
// one still works but the output buffer is prefixed with a warning.
var interactiveCommands = map[string]bool{
	"vim":    true,
	"vi":     true,
	"nano":   true,
	"emacs":  true,
	"less":   true,
	"more":   true,
	"top":    true,
	"htop":   true,
	"screen": true,
	"tmux":   true,
	"lynx":   true,
	"mc":     true,
	"ssh":    true,
	"telnet": true,
}

// NeedsTerminal reports whether the command's first token is a known
// interactive program. A screen invocation with arguments (e.g. -X, -ls) is
// scripted use and does not count.
func NeedsTerminal(command string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	first := fields[0]
	if first == "screen" && len(fields) > 1 {
		return false
	}
	return interactiveCommands[first]
}
