// Package edit implements the search/replace engine: block parsing across
// three surface syntaxes, multi-tolerance matching, and application with
// indentation reconciliation.
package edit

import "strings"

// Tolerance is a line-normalization rule applied before equality checking.
// Levels are ordered by strictness; looser levels carry a higher score
// multiplier so stricter matches always win.
type Tolerance int

const (
	Exact Tolerance = iota
	IgnoreTrailingWhitespace
	IgnoreLeadingWhitespace
	IgnoreAllWhitespace
)

// allTolerances is the ascending-strictness order the match engine walks.
var allTolerances = []Tolerance{
	Exact,
	IgnoreTrailingWhitespace,
	IgnoreLeadingWhitespace,
	IgnoreAllWhitespace,
}

// Multiplier weights a match's score: multiplier times the count of lines the
// normalization actually changed.
func (t Tolerance) Multiplier() float64 {
	switch t {
	case Exact:
		return 1.0
	case IgnoreTrailingWhitespace:
		return 1.5
	case IgnoreLeadingWhitespace:
		return 10.0
	case IgnoreAllWhitespace:
		return 50.0
	}
	return 50.0
}

// Normalize applies the level's rule to a single line.
func (t Tolerance) Normalize(line string) string {
	switch t {
	case Exact:
		return line
	case IgnoreTrailingWhitespace:
		return strings.TrimRight(line, " \t")
	case IgnoreLeadingWhitespace:
		return strings.TrimLeft(strings.TrimRight(line, " \t"), " \t")
	case IgnoreAllWhitespace:
		return strings.Map(func(r rune) rune {
			if r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, line)
	}
	return line
}

// Warning returns the caller-visible message a non-Exact match attaches, or
// the empty string for Exact and trailing-whitespace matches.
func (t Tolerance) Warning() string {
	switch t {
	case IgnoreLeadingWhitespace:
		return "Warning: matching without considering indentation (leading spaces)."
	case IgnoreAllWhitespace:
		return "Warning: matching after removing all spaces in lines."
	}
	return ""
}

func (t Tolerance) String() string {
	switch t {
	case Exact:
		return "exact"
	case IgnoreTrailingWhitespace:
		return "ignore_trailing_whitespace"
	case IgnoreLeadingWhitespace:
		return "ignore_leading_whitespace"
	case IgnoreAllWhitespace:
		return "ignore_all_whitespace"
	}
	return "unknown"
}
