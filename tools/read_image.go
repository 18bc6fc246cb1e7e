package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/winxlab/winx/core"
)

type readImageArgs struct {
	FilePath string `json:"file_path"`
}

// imageMIMETypes maps file extensions to their MIME type for the data URI.
var imageMIMETypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
}

// runReadImage returns the file as a base64 data URI with a guessed MIME.
func runReadImage(ctx context.Context, deps *Deps, raw json.RawMessage) (string, error) {
	var args readImageArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", core.NewError(core.ErrParse, "read_image arguments: %v", err)
	}
	if args.FilePath == "" {
		return "", core.NewError(core.ErrInvalidArgument, "file_path is required")
	}
	path := absolutize(deps.Engine.Workspace(), args.FilePath)
	if err := deps.Engine.Gate.Authorize(core.ActionReadImage, path); err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", core.WrapIO(path, err)
	}
	if info.Size() > 10*maxReadBytes {
		return "", &core.AgentError{Kind: core.ErrFileTooLarge,
			Message: "image exceeds the transfer limit", Path: path, Size: info.Size()}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", core.WrapIO(path, err)
	}
	mime, ok := imageMIMETypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		mime = "application/octet-stream"
	}
	deps.tracker.RecordFile(path)
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(content)), nil
}
