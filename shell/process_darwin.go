//go:build darwin

package shell

import (
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// processAlive uses the kill(pid, 0) probe; EPERM still means the process
// exists, just owned by someone else.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}

// processOrphaned asks ps for the parent pid; ppid 1 means reparented to
// launchd, which fills the init role here.
func processOrphaned(pid int) bool {
	out, err := exec.Command("ps", "-o", "ppid=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return true
	}
	ppid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return true
	}
	return ppid == 1
}
