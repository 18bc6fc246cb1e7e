package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/winxlab/winx/core"
	"github.com/winxlab/winx/persistence"
)

type contextSaveArgs struct {
	ID                string   `json:"id"`
	ProjectRootPath   string   `json:"project_root_path"`
	Description       string   `json:"description"`
	RelevantFileGlobs []string `json:"relevant_file_globs"`
}

// runContextSave persists a task snapshot: description plus the bodies of the
// first matched files, durable across restarts.
func runContextSave(ctx context.Context, deps *Deps, raw json.RawMessage) (string, error) {
	var args contextSaveArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", core.NewError(core.ErrParse, "context_save arguments: %v", err)
	}
	if args.ID == "" {
		return "", core.NewError(core.ErrInvalidArgument, "id is required")
	}
	if deps.Contexts == nil {
		return "", core.NewError(core.ErrOther, "no context store configured")
	}
	if err := deps.Engine.Gate.Authorize(core.ActionSaveContext, args.ID); err != nil {
		return "", err
	}

	root := args.ProjectRootPath
	if root == "" {
		root = deps.Engine.Workspace()
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", core.NewError(core.ErrInvalidPath, "project root: %v", err)
	}

	fileCount, err := deps.Contexts.Save(persistence.Snapshot{
		ID:          args.ID,
		ProjectRoot: root,
		Description: args.Description,
		FileGlobs:   args.RelevantFileGlobs,
	})
	if err != nil {
		return "", err
	}
	deps.Engine.SetTaskID(args.ID)
	return fmt.Sprintf("Saved context %s (%d files embedded). Resume with initialize(task_id_to_resume=%q).",
		args.ID, fileCount, args.ID), nil
}
