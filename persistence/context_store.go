// Package persistence holds the durable side of the agent: task context
// snapshots under the user data directory and the SQLite audit trail.
package persistence

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/winxlab/winx/core"
)

// snapshotFileLimit caps how many matched files a snapshot embeds.
const snapshotFileLimit = 10

// IndexEntry is one row of the task index.
type IndexEntry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"` // first line only
	ProjectPath string    `json:"project_path"`
	FileCount   int       `json:"file_count"`
}

// Snapshot is the input to a context save.
type Snapshot struct {
	ID          string
	ProjectRoot string
	Description string
	FileGlobs   []string
}

// ContextStore persists task snapshots as `<root>/memory/<id>.txt` plus a
// JSON index. Writes use the temp-then-rename pattern so readers never see a
// torn file.
type ContextStore struct {
	mu  sync.Mutex
	dir string
}

// NewContextStore roots the store at `<dataDir>/memory`.
func NewContextStore(dataDir string) (*ContextStore, error) {
	dir := filepath.Join(dataDir, "memory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, core.WrapIO(dir, err)
	}
	return &ContextStore{dir: dir}, nil
}

func (s *ContextStore) indexPath() string { return filepath.Join(s.dir, "index.json") }

func (s *ContextStore) bodyPath(id string) string {
	return filepath.Join(s.dir, id+".txt")
}

// Save renders the snapshot body with up to the first ten glob-matched files
// and records it in the index.
func (s *ContextStore) Save(snap Snapshot) (int, error) {
	if snap.ID == "" {
		return 0, core.NewError(core.ErrInvalidArgument, "snapshot id required")
	}
	if strings.ContainsAny(snap.ID, "/\\") {
		return 0, core.NewError(core.ErrInvalidPath, "snapshot id %q must not contain path separators", snap.ID)
	}

	files := matchFiles(snap.ProjectRoot, snap.FileGlobs, snapshotFileLimit)

	var body strings.Builder
	fmt.Fprintf(&body, "# Task: %s\n\nProject root: %s\n\n%s\n", snap.ID, snap.ProjectRoot, snap.Description)
	if len(snap.FileGlobs) > 0 {
		fmt.Fprintf(&body, "\nFile globs: %s\n", strings.Join(snap.FileGlobs, ", "))
	}
	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(snap.ProjectRoot, rel))
		if err != nil {
			continue
		}
		fmt.Fprintf(&body, "\n## File: %s\n%s\n", rel, string(content))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomicWrite(s.bodyPath(snap.ID), []byte(body.String())); err != nil {
		return 0, err
	}
	entries, err := s.readIndex()
	if err != nil {
		return 0, err
	}
	entry := IndexEntry{
		ID:          snap.ID,
		Timestamp:   time.Now().UTC(),
		Description: firstLine(snap.Description),
		ProjectPath: snap.ProjectRoot,
		FileCount:   len(files),
	}
	replaced := false
	for i := range entries {
		if entries[i].ID == snap.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	data, marshalErr := json.MarshalIndent(entries, "", "  ")
	if marshalErr != nil {
		return 0, core.NewError(core.ErrOther, "index encode failure: %v", marshalErr)
	}
	if err := atomicWrite(s.indexPath(), data); err != nil {
		return 0, err
	}
	return len(files), nil
}

// Load returns the saved body for id.
func (s *ContextStore) Load(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.bodyPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", core.NewError(core.ErrInvalidArgument, "no saved context with id %q", id)
		}
		return "", core.WrapIO(s.bodyPath(id), err)
	}
	return string(data), nil
}

// List returns the index entries, newest first.
func (s *ContextStore) List() ([]IndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	return entries, nil
}

func (s *ContextStore) readIndex() ([]IndexEntry, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.WrapIO(s.indexPath(), err)
	}
	var entries []IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, core.NewError(core.ErrParse, "index parse failure: %v", err)
	}
	return entries, nil
}

// matchFiles walks root collecting relative paths that match any glob, in
// walk order, up to limit.
func matchFiles(root string, globs []string, limit int) []string {
	if root == "" || len(globs) == 0 {
		return nil
	}
	var matched []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name == ".git" || name == "node_modules" || name == "target" {
				return filepath.SkipDir
			}
			return nil
		}
		if len(matched) >= limit {
			return filepath.SkipAll
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		for _, glob := range globs {
			if core.MatchGlob(glob, rel) || core.MatchGlob(glob, d.Name()) {
				matched = append(matched, rel)
				break
			}
		}
		return nil
	})
	return matched
}

// atomicWrite writes to a temp file in the target's directory then renames.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return core.WrapIO(path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return core.WrapIO(path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return core.WrapIO(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return core.WrapIO(path, err)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
