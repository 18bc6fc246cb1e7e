//go:build linux

package shell

import (
	"fmt"
	"os"
)

// processAlive checks /proc/<pid>. Reparenting to init is detectable by
// reading the PPid field, but a pid whose /proc entry vanished is simply gone.
func processAlive(pid int) bool {
	info, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	if err != nil {
		return false
	}
	return info.IsDir()
}

// processOrphaned reports whether pid has been reparented to init (ppid 1).
func processOrphaned(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	// stat format: pid (comm) state ppid ...; comm may contain spaces so scan
	// from the closing paren.
	s := string(data)
	close := -1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ')' {
			close = i
			break
		}
	}
	if close < 0 || close+2 >= len(s) {
		return true
	}
	var state byte
	var ppid int
	if _, err := fmt.Sscanf(s[close+2:], "%c %d", &state, &ppid); err != nil {
		return true
	}
	return ppid == 1
}
