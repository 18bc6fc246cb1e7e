package core

import (
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
)

// ErrorKind tags an AgentError with a machine-readable category.
type ErrorKind string

const (
	ErrIO                     ErrorKind = "io"
	ErrBashExecution          ErrorKind = "bash_execution"
	ErrShellNotStarted        ErrorKind = "shell_not_started"
	ErrLock                   ErrorKind = "lock_error"
	ErrPermissionDenied       ErrorKind = "permission_denied"
	ErrFileOperation          ErrorKind = "file_operation"
	ErrInvalidArgument        ErrorKind = "invalid_argument"
	ErrInvalidPath            ErrorKind = "invalid_path"
	ErrFileTooLarge           ErrorKind = "file_too_large"
	ErrSyntax                 ErrorKind = "syntax_error"
	ErrParse                  ErrorKind = "parse_error"
	ErrSymbol                 ErrorKind = "symbol_error"
	ErrInitializationRequired ErrorKind = "initialization_required"
	ErrOther                  ErrorKind = "other"
)

// AgentError is the structured error every component returns. The transport
// maps it to a protocol error via ToRPCError; everything in between passes it
// through unchanged so path/line context survives to the caller.
type AgentError struct {
	Kind    ErrorKind
	Message string
	Path    string
	Line    int   // 1-based, 0 when not applicable
	Size    int64 // bytes, for ErrFileTooLarge
	Err     error
}

// Error renders the kind, message and any location context.
func (e *AgentError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Path != "" {
		msg += " (path: " + e.Path + ")"
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *AgentError) Unwrap() error { return e.Err }

// NewError builds an AgentError with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *AgentError {
	return &AgentError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapIO tags an underlying I/O error with its path.
func WrapIO(path string, err error) *AgentError {
	return &AgentError{Kind: ErrIO, Message: "i/o failure", Path: path, Err: err}
}

// FileOpError reports a failed file operation on path.
func FileOpError(path, format string, args ...any) *AgentError {
	return &AgentError{Kind: ErrFileOperation, Message: fmt.Sprintf(format, args...), Path: path}
}

// SyntaxErrorAt reports a block-parse failure at a 1-based line.
func SyntaxErrorAt(line int, format string, args ...any) *AgentError {
	return &AgentError{Kind: ErrSyntax, Message: fmt.Sprintf(format, args...), Line: line}
}

// InitRequired is returned by every non-initialize operation before the
// initialization latch is set.
func InitRequired() *AgentError {
	return &AgentError{Kind: ErrInitializationRequired, Message: "initialize must be called before any other operation"}
}

// errorDetails is the JSON details blob attached to protocol errors.
type errorDetails struct {
	ErrorType string `json:"error_type"`
	Path      string `json:"path,omitempty"`
	Line      int    `json:"line,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Cause     string `json:"cause,omitempty"`
}

// ToRPCError maps an error to a jsonrpc2 protocol error. AgentError kinds
// select between invalid-params, invalid-request and internal codes; anything
// else becomes an internal error.
func ToRPCError(err error) *jsonrpc2.Error {
	ae, ok := err.(*AgentError)
	if !ok {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}
	code := int64(jsonrpc2.CodeInternalError)
	switch ae.Kind {
	case ErrInvalidArgument, ErrInvalidPath, ErrSyntax, ErrParse, ErrFileTooLarge:
		code = jsonrpc2.CodeInvalidParams
	case ErrPermissionDenied, ErrInitializationRequired:
		code = jsonrpc2.CodeInvalidRequest
	}
	details := errorDetails{
		ErrorType: string(ae.Kind),
		Path:      ae.Path,
		Line:      ae.Line,
		Size:      ae.Size,
	}
	if ae.Err != nil {
		details.Cause = ae.Err.Error()
	}
	rpcErr := &jsonrpc2.Error{Code: code, Message: ae.Error()}
	if data, err := json.Marshal(details); err == nil {
		raw := json.RawMessage(data)
		rpcErr.Data = &raw
	}
	return rpcErr
}

// KindOf returns the AgentError kind, or ErrOther for foreign errors.
func KindOf(err error) ErrorKind {
	if ae, ok := err.(*AgentError); ok {
		return ae.Kind
	}
	return ErrOther
}
