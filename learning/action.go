// Package learning contains the tabular Q-learning tool selector: an ε-greedy
// policy over a reduced state signature with replay-buffer re-updates.
package learning

import "fmt"

// ActionKind tags the variant of an Action.
type ActionKind string

const (
	ActReadFile        ActionKind = "read_file"
	ActWriteFile       ActionKind = "write_file"
	ActEditFile        ActionKind = "edit_file"
	ActExecuteCommand  ActionKind = "execute_command"
	ActRunTests        ActionKind = "run_tests"
	ActRunBuild        ActionKind = "run_build"
	ActAnalyzeCode     ActionKind = "analyze_code"
	ActSearchForSymbol ActionKind = "search_for_symbol"
	ActSuggestFix      ActionKind = "suggest_fix"
	ActNoOp            ActionKind = "no_op"
)

// Action is one tool invocation the selector can choose. Only the fields
// relevant to the kind are populated.
type Action struct {
	Kind    ActionKind
	Path    string
	Content string
	Search  string
	Replace string
	Command string
	Symbol  string
	Line    int
	Column  int
}

// Key is the action's identity in the Q-table: the kind plus its principal
// argument, so e.g. reading two different files are distinct actions.
func (a Action) Key() string {
	switch a.Kind {
	case ActReadFile, ActWriteFile, ActEditFile, ActAnalyzeCode, ActSuggestFix:
		return fmt.Sprintf("%s:%s", a.Kind, a.Path)
	case ActExecuteCommand:
		return fmt.Sprintf("%s:%s", a.Kind, a.Command)
	case ActSearchForSymbol:
		return fmt.Sprintf("%s:%s", a.Kind, a.Symbol)
	}
	return string(a.Kind)
}
