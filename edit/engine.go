package edit

import (
	"fmt"
	"strings"

	"github.com/winxlab/winx/core"
)

// BlockResult is the per-block diagnostic the engine reports.
type BlockResult struct {
	Index      int         `json:"index"`
	Applied    bool        `json:"applied"`
	Tolerance  string      `json:"tolerance,omitempty"`
	Range      *MatchRange `json:"range,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`
	Failure    string      `json:"failure,omitempty"`
	Similar    []string    `json:"similar,omitempty"`
	Similarity float64     `json:"similarity,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Report is the outcome of applying a block set.
type Report struct {
	Content             string        `json:"-"`
	AppliedIndividually bool          `json:"applied_individually"`
	Blocks              []BlockResult `json:"blocks"`
	Warnings            []string      `json:"warnings,omitempty"`
	PercentToChange     float64       `json:"percentage_to_change,omitempty"`
}

// ApplyBlocks applies blocks to content in two phases: all-or-nothing batch
// first, then a one-at-a-time replay that collects per-block diagnostics. The
// replay counts as success when at least one block lands.
func ApplyBlocks(content string, blocks []Block) (*Report, error) {
	if len(blocks) == 0 {
		return nil, core.NewError(core.ErrInvalidArgument, "no search/replace blocks supplied")
	}

	percent := percentToChange(content, blocks)

	report, batchErr := applyBatch(content, blocks)
	if batchErr == nil {
		report.PercentToChange = percent
		return report, nil
	}

	report = applyIndividually(content, blocks)
	report.PercentToChange = percent
	applied := 0
	for _, b := range report.Blocks {
		if b.Applied {
			applied++
		}
	}
	if applied == 0 {
		return report, batchErr
	}
	report.AppliedIndividually = true
	report.Warnings = dedupe(append(report.Warnings,
		fmt.Sprintf("Warning: batch application failed (%v); %d of %d blocks were applied individually.", batchErr, applied, len(blocks))))
	return report, nil
}

// percentToChange reports how much of the file the search blocks cover.
func percentToChange(content string, blocks []Block) float64 {
	lines := splitLines(content)
	if len(lines) == 0 {
		return 0
	}
	searched := 0
	for _, block := range blocks {
		searched += len(block.Search)
	}
	return float64(searched) / float64(len(lines)) * 100
}

// applyBatch fails the whole set on the first block that cannot be applied.
func applyBatch(content string, blocks []Block) (*Report, error) {
	report := &Report{Content: content}
	lines := splitLines(content)
	for i, block := range blocks {
		next, result, err := applyOne(lines, block, i)
		if err != nil {
			return nil, err
		}
		lines = next
		report.Blocks = append(report.Blocks, result)
		report.Warnings = append(report.Warnings, result.Warnings...)
	}
	report.Content = strings.Join(lines, "\n")
	report.Warnings = dedupe(report.Warnings)
	return report, nil
}

// applyIndividually replays each block against the evolving content,
// recording a diagnostic per block instead of aborting.
func applyIndividually(content string, blocks []Block) *Report {
	report := &Report{Content: content}
	lines := splitLines(content)
	for i, block := range blocks {
		next, result, err := applyOne(lines, block, i)
		if err != nil {
			result = failureResult(lines, block, i, err)
		} else {
			lines = next
		}
		report.Blocks = append(report.Blocks, result)
		report.Warnings = append(report.Warnings, result.Warnings...)
	}
	report.Content = strings.Join(lines, "\n")
	report.Warnings = dedupe(report.Warnings)
	return report
}

// applyOne locates and substitutes a single block, returning the new content
// lines and the block diagnostic.
func applyOne(lines []string, block Block, index int) ([]string, BlockResult, error) {
	matches := FindMatches(lines, block.Search)
	if len(matches) == 0 {
		return nil, BlockResult{}, noMatchError(lines, block)
	}

	var chosen Match
	var warnings []string
	if block.OccurrenceIndex != nil {
		i := *block.OccurrenceIndex
		if i < 0 || i >= len(matches) {
			return nil, BlockResult{}, core.NewError(core.ErrInvalidArgument,
				"occurrence_index %d is out of range; valid indices are 0..%d", i, len(matches)-1)
		}
		byPosition := append([]Match(nil), matches...)
		sortByStart(byPosition)
		chosen = byPosition[i]
		warnings = append(warnings, fmt.Sprintf("Warning: applied occurrence %d of %d matches.", i, len(matches)))
	} else {
		ties := bestScoreTies(matches)
		if len(ties) > 1 {
			return nil, BlockResult{}, ambiguousError(lines, ties)
		}
		chosen = matches[0]
	}

	replace := block.Replace
	if chosen.Tolerance == IgnoreLeadingWhitespace {
		replace = reconcileIndent(lines[chosen.Range.Start:chosen.Range.End+1], block.Search, replace)
	}
	if w := chosen.Tolerance.Warning(); w != "" {
		warnings = append(warnings, w)
	}

	next := make([]string, 0, len(lines)-(chosen.Range.End-chosen.Range.Start+1)+len(replace))
	next = append(next, lines[:chosen.Range.Start]...)
	next = append(next, replace...)
	next = append(next, lines[chosen.Range.End+1:]...)

	r := chosen.Range
	return next, BlockResult{
		Index:     index,
		Applied:   true,
		Tolerance: chosen.Tolerance.String(),
		Range:     &r,
		Warnings:  warnings,
	}, nil
}

// reconcileIndent shifts the replacement by the constant indentation delta
// between the matched content and the search block. A non-constant delta
// leaves the replacement untouched.
func reconcileIndent(matched, search, replace []string) []string {
	delta, ok := constantIndentDelta(matched, search)
	if !ok || delta == 0 {
		return replace
	}
	shifted := make([]string, len(replace))
	for i, line := range replace {
		if strings.TrimSpace(line) == "" {
			shifted[i] = line
			continue
		}
		if delta > 0 {
			shifted[i] = strings.Repeat(" ", delta) + line
		} else {
			shifted[i] = trimIndent(line, -delta)
		}
	}
	return shifted
}

// constantIndentDelta compares the leading whitespace of each non-empty
// matched line against its search counterpart.
func constantIndentDelta(matched, search []string) (int, bool) {
	delta := 0
	seen := false
	n := len(matched)
	if len(search) < n {
		n = len(search)
	}
	for i := 0; i < n; i++ {
		if strings.TrimSpace(matched[i]) == "" || strings.TrimSpace(search[i]) == "" {
			continue
		}
		d := indentWidth(matched[i]) - indentWidth(search[i])
		if !seen {
			delta = d
			seen = true
		} else if d != delta {
			return 0, false
		}
	}
	return delta, seen
}

func indentWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func trimIndent(line string, max int) string {
	trimmed := 0
	for trimmed < max && trimmed < len(line) && (line[trimmed] == ' ' || line[trimmed] == '\t') {
		trimmed++
	}
	return line[trimmed:]
}

// bestScoreTies returns the matches sharing the lowest score at distinct
// positions. The input is already sorted by ascending score.
func bestScoreTies(matches []Match) []Match {
	best := matches[0].Score
	var ties []Match
	for _, m := range matches {
		if m.Score == best {
			ties = append(ties, m)
		}
	}
	return ties
}

func sortByStart(matches []Match) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Range.Start < matches[j-1].Range.Start; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}

// noMatchError builds the structured failure for an unlocatable block,
// attaching the closest approximate region when one clears the threshold.
func noMatchError(lines []string, block Block) error {
	percent := 0.0
	if len(lines) > 0 {
		percent = float64(len(block.Search)) / float64(len(lines)) * 100
	}
	msg := fmt.Sprintf("search block not found in file (block is %.1f%% of the file)", percent)
	if closest := FindClosestMatch(lines, block.Search); closest != nil {
		msg += fmt.Sprintf("\nClosest region (%.0f%% similar) at lines %d-%d:\n%s",
			closest.Similarity*100, closest.Range.Start+1, closest.Range.End+1,
			strings.Join(closest.Lines, "\n"))
		msg += "\nAdjust the search block to match the file exactly, or re-read the file first."
	} else {
		msg += "\nNo similar region was found; re-read the file and rebuild the search block from its current content."
	}
	return core.NewError(core.ErrFileOperation, "%s", msg)
}

// ambiguousError lists up to four equally-scored match regions with three
// lines of surrounding context each.
func ambiguousError(lines []string, ties []Match) error {
	sortByStart(ties)
	var b strings.Builder
	fmt.Fprintf(&b, "search block matches %d locations equally well:", len(ties))
	shown := ties
	if len(shown) > 4 {
		shown = shown[:4]
	}
	for _, m := range shown {
		lo := m.Range.Start - 3
		if lo < 0 {
			lo = 0
		}
		hi := m.Range.End + 3
		if hi > len(lines)-1 {
			hi = len(lines) - 1
		}
		fmt.Fprintf(&b, "\n--- lines %d-%d ---\n", lo+1, hi+1)
		b.WriteString(strings.Join(lines[lo:hi+1], "\n"))
	}
	b.WriteString("\nAdd more surrounding context to the search block, or set occurrence_index to pick one match.")
	return core.NewError(core.ErrFileOperation, "%s", b.String())
}

// failureResult converts an apply error into a per-block diagnostic for the
// individual-fallback phase.
func failureResult(lines []string, block Block, index int, err error) BlockResult {
	result := BlockResult{Index: index, Failure: err.Error()}
	if closest := FindClosestMatch(lines, block.Search); closest != nil {
		result.Similar = closest.Lines
		result.Similarity = closest.Similarity
		result.Suggestion = fmt.Sprintf("closest region is lines %d-%d; adjust the search block to match it",
			closest.Range.Start+1, closest.Range.End+1)
	}
	return result
}

func dedupe(warnings []string) []string {
	seen := make(map[string]bool, len(warnings))
	var out []string
	for _, w := range warnings {
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
