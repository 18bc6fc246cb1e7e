package core

import (
	"regexp"
	"strconv"
	"strings"
)

// rangeSuffix matches a trailing :<start>-<end> on a path. Either side of the
// dash may be omitted to default to the file bound.
var rangeSuffix = regexp.MustCompile(`:(\d*)-(\d*)$`)

// PathRequest is a path with an optional line range carried in the suffix.
type PathRequest struct {
	Path  string
	Start int // 1-based, 0 = from the first line
	End   int // 1-based inclusive, 0 = to the last line
}

// ParsePathRequest splits `<path>:<start>-<end>` into path and bounds. A plain
// path, or a suffix that does not parse as a range, leaves the bounds at zero.
func ParsePathRequest(raw string) (PathRequest, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PathRequest{}, NewError(ErrInvalidPath, "empty path")
	}
	loc := rangeSuffix.FindStringSubmatchIndex(raw)
	if loc == nil {
		return PathRequest{Path: raw}, nil
	}
	match := rangeSuffix.FindStringSubmatch(raw)
	req := PathRequest{Path: raw[:loc[0]]}
	if req.Path == "" {
		return PathRequest{}, NewError(ErrInvalidPath, "path missing before range suffix in %q", raw)
	}
	if match[1] != "" {
		n, err := strconv.Atoi(match[1])
		if err != nil || n < 1 {
			return PathRequest{}, NewError(ErrInvalidArgument, "invalid range start in %q", raw)
		}
		req.Start = n
	}
	if match[2] != "" {
		n, err := strconv.Atoi(match[2])
		if err != nil || n < 1 {
			return PathRequest{}, NewError(ErrInvalidArgument, "invalid range end in %q", raw)
		}
		req.End = n
	}
	if req.Start > 0 && req.End > 0 && req.End < req.Start {
		return PathRequest{}, NewError(ErrInvalidArgument, "range end before start in %q", raw)
	}
	return req, nil
}
