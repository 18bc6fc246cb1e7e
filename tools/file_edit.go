package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/winxlab/winx/core"
	"github.com/winxlab/winx/edit"
)

type fileEditArgs struct {
	FilePath string `json:"file_path"`
	Blocks   string `json:"file_edit_using_search_replace_blocks"`
}

// runFileEdit applies search/replace blocks to a whitelisted file. An
// unwhitelisted or stale target fails with the file's current content and its
// unread ranges so the caller can re-read and retry without guessing.
func runFileEdit(ctx context.Context, deps *Deps, raw json.RawMessage) (string, error) {
	var args fileEditArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", core.NewError(core.ErrParse, "file_edit arguments: %v", err)
	}
	if args.FilePath == "" {
		return "", core.NewError(core.ErrInvalidArgument, "file_path is required")
	}
	path := absolutize(deps.Engine.Workspace(), args.FilePath)
	if err := deps.Engine.Gate.Authorize(core.ActionEditFile, path); err != nil {
		return "", err
	}

	blocks, err := edit.ParseBlocks(args.Blocks)
	if err != nil {
		return "", err
	}

	// The overwrite gate passes for paths that were never read because they do
	// not exist yet, so existence is checked first.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", core.FileOpError(path, "file does not exist; use write_if_empty to create it")
	}
	if !deps.Engine.Whitelist.CanOverwrite(path) {
		return "", unreadFileError(deps, path)
	}

	lock := deps.Engine.FileLock(path)
	lock.Lock()
	defer lock.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return "", core.WrapIO(path, err)
	}

	report, err := edit.ApplyBlocks(string(content), blocks)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, []byte(report.Content), 0o644); err != nil {
		return "", core.WrapIO(path, err)
	}
	// The edit rewrote the file; the whitelist entry is rebuilt from the new
	// bytes so a follow-up edit stays eligible.
	deps.Engine.Whitelist.Forget(path)
	if err := deps.Engine.Whitelist.RecordRead(path, core.LineRange{}); err != nil {
		return "", err
	}
	deps.tracker.RecordFile(path)
	deps.tracker.RecordWarnings(len(report.Warnings))

	return renderEditReport(path, report), nil
}

// unreadFileError surfaces the current content plus unread ranges for a path
// that failed the overwrite gate.
func unreadFileError(deps *Deps, path string) error {
	unread := deps.Engine.Whitelist.UnreadRanges(path)
	var b strings.Builder
	fmt.Fprintf(&b, "file has not been read (or changed since it was read); re-read it before editing.")
	if len(unread) > 0 {
		b.WriteString("\nUnread ranges:")
		for _, r := range unread {
			fmt.Fprintf(&b, " %d-%d", r.Start, r.End)
		}
	}
	if content, err := os.ReadFile(path); err == nil {
		fmt.Fprintf(&b, "\nCurrent content:\n%s", string(content))
	}
	return core.FileOpError(path, "%s", b.String())
}

// renderEditReport formats the per-block diagnostics into the tool payload.
func renderEditReport(path string, report *edit.Report) string {
	var b strings.Builder
	applied := 0
	for _, block := range report.Blocks {
		if block.Applied {
			applied++
		}
	}
	fmt.Fprintf(&b, "Edited %s: %d of %d blocks applied", path, applied, len(report.Blocks))
	if report.AppliedIndividually {
		b.WriteString(" (individually, after batch failure)")
	}
	b.WriteString("\n")
	for _, block := range report.Blocks {
		if block.Applied {
			fmt.Fprintf(&b, "- block %d: applied (%s tolerance", block.Index, block.Tolerance)
			if block.Range != nil {
				fmt.Fprintf(&b, ", lines %d-%d", block.Range.Start+1, block.Range.End+1)
			}
			b.WriteString(")\n")
			continue
		}
		fmt.Fprintf(&b, "- block %d: failed: %s\n", block.Index, block.Failure)
		if len(block.Similar) > 0 {
			fmt.Fprintf(&b, "  similar (%.0f%%):\n  %s\n", block.Similarity*100,
				strings.Join(block.Similar, "\n  "))
		}
		if block.Suggestion != "" {
			fmt.Fprintf(&b, "  suggestion: %s\n", block.Suggestion)
		}
	}
	for _, warning := range report.Warnings {
		b.WriteString(warning + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
