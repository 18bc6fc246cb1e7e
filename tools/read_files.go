package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/winxlab/winx/core"
)

const (
	// maxReadBytes is the size above which a read without an explicit range
	// is truncated.
	maxReadBytes = 1_000_000
	// truncatedLineCount is how many leading lines a truncated read returns.
	truncatedLineCount = 500
)

type readFilesArgs struct {
	FilePaths             []string `json:"file_paths"`
	ShowLineNumbersReason string   `json:"show_line_numbers_reason"`
}

// runReadFiles reads each requested path, honoring trailing :<start>-<end>
// ranges. Per-path failures are collected into the payload; a bad path does
// not fail the batch.
func runReadFiles(ctx context.Context, deps *Deps, raw json.RawMessage) (string, error) {
	var args readFilesArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", core.NewError(core.ErrParse, "read_files arguments: %v", err)
	}
	if len(args.FilePaths) == 0 {
		return "", core.NewError(core.ErrInvalidArgument, "file_paths must not be empty")
	}

	workspace := deps.Engine.Workspace()
	var b strings.Builder
	for i, rawPath := range args.FilePaths {
		if i > 0 {
			b.WriteString("\n")
		}
		req, err := core.ParsePathRequest(rawPath)
		if err != nil {
			fmt.Fprintf(&b, "--- %s ---\nError: %v\n", rawPath, err)
			continue
		}
		path := absolutize(workspace, req.Path)
		if err := deps.Engine.Gate.Authorize(core.ActionReadFile, path); err != nil {
			fmt.Fprintf(&b, "--- %s ---\nError: %v\n", path, err)
			continue
		}
		content, err := readRange(deps, path, req.Start, req.End, args.ShowLineNumbersReason != "")
		if err != nil {
			fmt.Fprintf(&b, "--- %s ---\nError: %v\n", path, err)
			continue
		}
		deps.tracker.RecordFile(path)
		fmt.Fprintf(&b, "--- %s ---\n%s\n", rawPath, content)
	}
	return b.String(), nil
}

// readRange reads path between 1-based bounds (0 meaning the file bound),
// records the read in the whitelist, and truncates oversized unbounded reads
// to the first 500 lines with a warning.
func readRange(deps *Deps, path string, start, end int, withLineNumbers bool) (string, error) {
	lock := deps.Engine.FileLock(path)
	lock.RLock()
	defer lock.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		return "", core.WrapIO(path, err)
	}
	if info.IsDir() {
		return "", core.NewError(core.ErrInvalidPath, "%s is a directory", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", core.WrapIO(path, err)
	}
	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	total := len(lines)
	if len(content) == 0 {
		lines = nil
		total = 0
	}

	truncated := false
	if start == 0 && end == 0 && info.Size() > deps.MaxFileSize {
		end = truncatedLineCount
		truncated = true
	}
	if start == 0 {
		start = 1
	}
	if end == 0 || end > total {
		end = total
	}
	if start > total && total > 0 {
		return "", core.NewError(core.ErrInvalidArgument,
			"range start %d is beyond the last line (%d) of %s", start, total, path)
	}

	if err := deps.Engine.Whitelist.RecordRead(path, core.LineRange{Start: start, End: end}); err != nil {
		return "", err
	}

	var selected []string
	if total > 0 && start <= end {
		selected = lines[start-1 : end]
	}
	if withLineNumbers {
		numbered := make([]string, len(selected))
		for i, line := range selected {
			numbered[i] = fmt.Sprintf("%d\t%s", start+i, line)
		}
		selected = numbered
	}
	result := strings.Join(selected, "\n")
	if truncated {
		result += fmt.Sprintf(
			"\nWarning: %s is larger than %d bytes; only the first %d lines are shown. Pass an explicit :<start>-<end> range to read more.",
			path, deps.MaxFileSize, truncatedLineCount)
	}
	return result, nil
}
