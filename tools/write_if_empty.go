package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/winxlab/winx/core"
)

type writeIfEmptyArgs struct {
	FilePath    string `json:"file_path"`
	FileContent string `json:"file_content"`
}

// runWriteIfEmpty creates or writes the target only when it is missing or
// zero-length. Permission-denied and read-only failures are recovered by
// retrying under /tmp/<basename> and reporting the redirection.
func runWriteIfEmpty(ctx context.Context, deps *Deps, raw json.RawMessage) (string, error) {
	var args writeIfEmptyArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", core.NewError(core.ErrParse, "write_if_empty arguments: %v", err)
	}
	if args.FilePath == "" {
		return "", core.NewError(core.ErrInvalidArgument, "file_path is required")
	}
	path := absolutize(deps.Engine.Workspace(), args.FilePath)
	if err := deps.Engine.Gate.Authorize(core.ActionWriteFile, path); err != nil {
		return "", err
	}

	lock := deps.Engine.FileLock(path)
	lock.Lock()
	defer lock.Unlock()

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return "", core.FileOpError(path, "file exists and is not empty; use file_edit to modify it")
	}

	err := writeWithParents(path, args.FileContent)
	if err == nil {
		deps.Engine.Whitelist.Forget(path)
		if recErr := deps.Engine.Whitelist.RecordRead(path, core.LineRange{}); recErr == nil {
			deps.tracker.RecordFile(path)
		}
		return fmt.Sprintf("Wrote %d bytes to %s", len(args.FileContent), path), nil
	}

	if !isPermissionOrReadOnly(err) {
		return "", core.WrapIO(path, err)
	}

	fallback := filepath.Join(os.TempDir(), filepath.Base(path))
	if fbErr := writeWithParents(fallback, args.FileContent); fbErr != nil {
		return "", core.WrapIO(path, err)
	}
	deps.tracker.RecordFile(fallback)
	return fmt.Sprintf("Warning: could not write %s (%v); content was written to %s instead.",
		path, err, fallback), nil
}

func writeWithParents(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func isPermissionOrReadOnly(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	return errors.Is(err, syscall.EROFS)
}
