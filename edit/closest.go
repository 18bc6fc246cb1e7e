package edit

import "strings"

// similarityThreshold filters closest-match suggestions: regions below 40%
// similarity are not worth showing the caller.
const similarityThreshold = 0.4

// ClosestMatch describes the best approximate region found when no tolerance
// level produced a match.
type ClosestMatch struct {
	Range      MatchRange
	Similarity float64 // 0..1
	Lines      []string
}

// FindClosestMatch slides a window of the search-block length over the
// content, scoring each window by trimmed line equality first and word-set
// overlap second, and returns the best region above the similarity threshold.
func FindClosestMatch(content, search []string) *ClosestMatch {
	if len(search) == 0 || len(content) == 0 {
		return nil
	}
	window := len(search)
	if window > len(content) {
		window = len(content)
	}

	best := bestWindow(content, search, window, lineSimilarity)
	if wordBest := bestWindow(content, search, window, wordSetSimilarity); wordBest != nil {
		if best == nil || wordBest.Similarity > best.Similarity {
			best = wordBest
		}
	}
	if best == nil || best.Similarity < similarityThreshold {
		return nil
	}
	return best
}

func bestWindow(content, search []string, window int, score func(window, search []string) float64) *ClosestMatch {
	var best *ClosestMatch
	for start := 0; start+window <= len(content); start++ {
		region := content[start : start+window]
		sim := score(region, search)
		if best == nil || sim > best.Similarity {
			best = &ClosestMatch{
				Range:      MatchRange{Start: start, End: start + window - 1},
				Similarity: sim,
				Lines:      append([]string(nil), region...),
			}
		}
	}
	return best
}

// lineSimilarity is the fraction of window lines whose trimmed text equals
// the corresponding trimmed search line.
func lineSimilarity(window, search []string) float64 {
	n := len(window)
	if len(search) < n {
		n = len(search)
	}
	if n == 0 {
		return 0
	}
	equal := 0
	for i := 0; i < n; i++ {
		if strings.TrimSpace(window[i]) == strings.TrimSpace(search[i]) {
			equal++
		}
	}
	return float64(equal) / float64(len(search))
}

// wordSetSimilarity is the Jaccard overlap of the word sets of the window and
// the search block.
func wordSetSimilarity(window, search []string) float64 {
	a := wordSet(window)
	b := wordSet(search)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	for w := range a {
		if b[w] {
			common++
		}
	}
	union := len(a) + len(b) - common
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union)
}

func wordSet(lines []string) map[string]bool {
	set := make(map[string]bool)
	for _, line := range lines {
		for _, w := range strings.Fields(line) {
			set[w] = true
		}
	}
	return set
}
