package core

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"
	"strings"
	"sync"
)

// overwriteCoverage is the fraction of a file's lines that must have been read
// before an overwrite is permitted.
const overwriteCoverage = 0.99

// LineRange is an inclusive 1-indexed span of lines.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// WhitelistEntry records what was known about a file at read time.
type WhitelistEntry struct {
	Hash       string      `json:"hash"`
	Ranges     []LineRange `json:"ranges"`
	TotalLines int         `json:"total_lines"`
}

// Coverage returns the fraction of lines covered by the stored ranges.
func (e WhitelistEntry) Coverage() float64 {
	if e.TotalLines == 0 {
		return 1.0
	}
	covered := 0
	for _, r := range e.Ranges {
		covered += r.End - r.Start + 1
	}
	return float64(covered) / float64(e.TotalLines)
}

// ReadWhitelist gates destructive writes: a path may only be overwritten when
// its current bytes hash to the recorded value and nearly all of it has been
// read. Entries are keyed by absolute path.
type ReadWhitelist struct {
	mu      sync.RWMutex
	entries map[string]WhitelistEntry
}

// NewReadWhitelist returns an empty whitelist.
func NewReadWhitelist() *ReadWhitelist {
	return &ReadWhitelist{entries: make(map[string]WhitelistEntry)}
}

// HashBytes computes the hex SHA-256 of content.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CountLines counts lines the way the range bookkeeping does: a trailing
// newline does not open an empty final line.
func CountLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := strings.Count(string(content), "\n")
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// RecordRead hashes the current file bytes and merges r into the stored range
// set. r spans the whole file when Start and End are both zero.
func (w *ReadWhitelist) RecordRead(path string, r LineRange) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return WrapIO(path, err)
	}
	total := CountLines(content)
	if r.Start == 0 && r.End == 0 {
		r = LineRange{Start: 1, End: total}
	}
	if r.Start < 1 {
		r.Start = 1
	}
	if r.End > total || r.End == 0 {
		r.End = total
	}
	hash := HashBytes(content)

	w.mu.Lock()
	defer w.mu.Unlock()
	entry, ok := w.entries[path]
	if !ok || entry.Hash != hash {
		entry = WhitelistEntry{Hash: hash, TotalLines: total}
	}
	entry.TotalLines = total
	if r.End >= r.Start {
		entry.Ranges = mergeRanges(append(entry.Ranges, r))
	}
	w.entries[path] = entry
	return nil
}

// CanOverwrite reports whether path is edit-eligible. Paths that do not exist
// on disk may always be created.
func (w *ReadWhitelist) CanOverwrite(path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		return os.IsNotExist(err)
	}
	w.mu.RLock()
	entry, ok := w.entries[path]
	w.mu.RUnlock()
	if !ok {
		return false
	}
	if entry.Hash != HashBytes(content) {
		return false
	}
	return entry.Coverage() >= overwriteCoverage
}

// UnreadRanges returns the complement of the stored range set within
// [1, total-lines]. A path with no entry is entirely unread.
func (w *ReadWhitelist) UnreadRanges(path string) []LineRange {
	w.mu.RLock()
	entry, ok := w.entries[path]
	w.mu.RUnlock()
	if !ok {
		total := 0
		if content, err := os.ReadFile(path); err == nil {
			total = CountLines(content)
		}
		if total == 0 {
			return nil
		}
		return []LineRange{{Start: 1, End: total}}
	}
	var unread []LineRange
	next := 1
	for _, r := range entry.Ranges {
		if r.Start > next {
			unread = append(unread, LineRange{Start: next, End: r.Start - 1})
		}
		if r.End+1 > next {
			next = r.End + 1
		}
	}
	if next <= entry.TotalLines {
		unread = append(unread, LineRange{Start: next, End: entry.TotalLines})
	}
	return unread
}

// Entry returns a copy of the stored entry for path.
func (w *ReadWhitelist) Entry(path string) (WhitelistEntry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	entry, ok := w.entries[path]
	if !ok {
		return WhitelistEntry{}, false
	}
	entry.Ranges = append([]LineRange(nil), entry.Ranges...)
	return entry, true
}

// Forget drops the entry for path. Used after a successful write so stale
// hashes never linger.
func (w *ReadWhitelist) Forget(path string) {
	w.mu.Lock()
	delete(w.entries, path)
	w.mu.Unlock()
}

// mergeRanges sorts and coalesces overlapping or adjacent ranges.
func mergeRanges(ranges []LineRange) []LineRange {
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].Start != ranges[j].Start {
			return ranges[i].Start < ranges[j].Start
		}
		return ranges[i].End < ranges[j].End
	})
	merged := []LineRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
