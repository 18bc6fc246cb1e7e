package edit

import (
	"sort"
	"strings"
)

// MatchRange is an inclusive 0-based line span within the content.
type MatchRange struct {
	Start int
	End   int
}

// Match is one candidate location for a search block.
type Match struct {
	Range          MatchRange
	Tolerance      Tolerance
	ToleranceCount int     // original lines that differed under normalization
	Score          float64 // multiplier x tolerance count, lower is better
}

// FindMatches runs the search block against the content lines at each
// tolerance level in ascending strictness, deduplicates by start position and
// returns matches sorted by ascending score.
func FindMatches(content, search []string) []Match {
	if len(search) == 0 || len(search) > len(content) {
		return nil
	}
	if whole, ok := wholeFileMatch(content, search); ok {
		return []Match{whole}
	}

	seen := make(map[int]bool)
	var matches []Match
	for _, level := range allTolerances {
		for _, m := range matchesAtLevel(content, search, level) {
			if seen[m.Range.Start] {
				continue
			}
			seen[m.Range.Start] = true
			matches = append(matches, m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score < matches[j].Score })
	return matches
}

// wholeFileMatch is the fast path: the normalized search equals the whole
// normalized content.
func wholeFileMatch(content, search []string) (Match, bool) {
	if len(content) != len(search) {
		return Match{}, false
	}
	if strings.Join(content, "\n") != strings.Join(search, "\n") {
		return Match{}, false
	}
	return Match{
		Range:     MatchRange{Start: 0, End: len(content) - 1},
		Tolerance: Exact,
	}, true
}

// matchesAtLevel scans one tolerance level. Candidate starts come from a map
// of the normalized first search line to its positions; if that line never
// appears, the whole level is skipped without scanning.
func matchesAtLevel(content, search []string, level Tolerance) []Match {
	normContent := make([]string, len(content))
	for i, line := range content {
		normContent[i] = level.Normalize(line)
	}
	normSearch := make([]string, len(search))
	for i, line := range search {
		normSearch[i] = level.Normalize(line)
	}

	positions := make(map[string][]int, len(normContent))
	for i, line := range normContent {
		positions[line] = append(positions[line], i)
	}
	starts, ok := positions[normSearch[0]]
	if !ok {
		return nil
	}

	var matches []Match
	for _, start := range starts {
		if start+len(search) > len(content) {
			continue
		}
		matched := true
		for j := 1; j < len(normSearch); j++ {
			if normContent[start+j] != normSearch[j] {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		count := 0
		for j := range search {
			if content[start+j] != search[j] {
				count++
			}
		}
		matches = append(matches, Match{
			Range:          MatchRange{Start: start, End: start + len(search) - 1},
			Tolerance:      level,
			ToleranceCount: count,
			Score:          level.Multiplier() * float64(count),
		})
	}
	return matches
}
