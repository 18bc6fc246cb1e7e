package edit

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/winxlab/winx/core"
)

// Block is one search/replace instruction. OccurrenceIndex selects which of
// several equally-scored matches to act upon; nil means "the unique match".
type Block struct {
	Search          []string
	Replace         []string
	OccurrenceIndex *int
}

var (
	searchMarker     = regexp.MustCompile(`^<{7,}\s*SEARCH\s*$`)
	dividerMarker    = regexp.MustCompile(`^={7,}\s*$`)
	replaceMarker    = regexp.MustCompile(`^>{7,}\s*REPLACE\s*$`)
	occurrenceLine   = regexp.MustCompile(`^# occurrence: (\d+)\s*$`)
	fenceLine        = regexp.MustCompile("^```.*$")
	badOriginalLabel = regexp.MustCompile(`^<{7,}\s*ORIGINAL\s*$`)
)

const blockSyntaxHelp = `search/replace blocks were not recognized in any accepted form.

Form 1 (markers):
<<<<<<< SEARCH
lines to find
=======
lines to insert
>>>>>>> REPLACE

An optional "# occurrence: N" comment line before a block applies it to the
N-th match only (0-based).

Form 2 (prefixes):
search:
lines to find
replace:
lines to insert

Form 3 (fences): the first fenced body is the search, the second the
replacement:
` + "```" + `
lines to find
` + "```" + `
` + "```" + `
lines to insert
` + "```" + `

Common mistakes: writing ORIGINAL instead of SEARCH, omitting the =======
divider, or providing a search body with no context lines.`

// ParseBlocks parses free text into blocks, trying the marker, prefix and
// fence syntaxes in order and returning the first that yields at least one
// well-formed block. If every syntax fails the error shows all accepted forms.
func ParseBlocks(text string) ([]Block, error) {
	lines := splitLines(text)

	blocks, err := parseMarkerBlocks(lines)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		return blocks, nil
	}

	blocks, err = parsePrefixBlocks(lines)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		return blocks, nil
	}

	blocks, err = parseFenceBlocks(lines)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		return blocks, nil
	}

	return nil, core.NewError(core.ErrSyntax, "%s", blockSyntaxHelp)
}

type markerState int

const (
	outsideBlock markerState = iota
	inSearch
	inReplace
)

// parseMarkerBlocks handles the <<<<<<< SEARCH / ======= / >>>>>>> REPLACE
// form. Markers appearing out of order fail with the offending line number.
func parseMarkerBlocks(lines []string) ([]Block, error) {
	var blocks []Block
	var current Block
	var pendingOccurrence *int
	state := outsideBlock

	for i, line := range lines {
		lineNo := i + 1
		switch {
		case searchMarker.MatchString(line):
			if state != outsideBlock {
				return nil, core.SyntaxErrorAt(lineNo, "nested SEARCH marker")
			}
			current = Block{OccurrenceIndex: pendingOccurrence}
			pendingOccurrence = nil
			state = inSearch
		case dividerMarker.MatchString(line):
			if state == inSearch {
				if len(current.Search) == 0 {
					return nil, core.SyntaxErrorAt(lineNo, "empty search body before divider")
				}
				state = inReplace
				continue
			}
			if state == outsideBlock {
				continue // stray divider outside a block is plain text
			}
			current.Replace = append(current.Replace, line)
		case replaceMarker.MatchString(line):
			if state != inReplace {
				return nil, core.SyntaxErrorAt(lineNo, "REPLACE marker without a preceding divider")
			}
			blocks = append(blocks, current)
			state = outsideBlock
		case badOriginalLabel.MatchString(line):
			return nil, core.SyntaxErrorAt(lineNo, "marker says ORIGINAL; the opening marker must say SEARCH")
		default:
			switch state {
			case outsideBlock:
				if m := occurrenceLine.FindStringSubmatch(line); m != nil {
					n, convErr := strconv.Atoi(m[1])
					if convErr == nil {
						pendingOccurrence = &n
					}
				}
			case inSearch:
				current.Search = append(current.Search, line)
			case inReplace:
				current.Replace = append(current.Replace, line)
			}
		}
	}
	if state != outsideBlock {
		return nil, core.SyntaxErrorAt(len(lines), "unterminated search/replace block (missing closing marker)")
	}
	return blocks, nil
}

// parsePrefixBlocks handles alternating `search:` / `replace:` sections. The
// literals are case-sensitive and must sit on their own lines.
func parsePrefixBlocks(lines []string) ([]Block, error) {
	var blocks []Block
	var current *Block
	state := outsideBlock

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimRight(line, " \t")
		switch trimmed {
		case "search:":
			if state == inSearch {
				return nil, core.SyntaxErrorAt(lineNo, "search: section not followed by replace:")
			}
			if current != nil {
				blocks = append(blocks, *current)
			}
			current = &Block{}
			state = inSearch
		case "replace:":
			if state != inSearch {
				return nil, core.SyntaxErrorAt(lineNo, "replace: section without a preceding search:")
			}
			if len(current.Search) == 0 {
				return nil, core.SyntaxErrorAt(lineNo, "empty search body before replace:")
			}
			state = inReplace
		default:
			switch state {
			case inSearch:
				current.Search = append(current.Search, line)
			case inReplace:
				current.Replace = append(current.Replace, line)
			}
		}
	}
	if state == inSearch {
		return nil, core.SyntaxErrorAt(len(lines), "search: section not followed by replace:")
	}
	if current != nil {
		blocks = append(blocks, *current)
	}
	return blocks, nil
}

// parseFenceBlocks pairs triple-backtick fences: the first fence body is the
// search half, the next the replacement.
func parseFenceBlocks(lines []string) ([]Block, error) {
	var bodies [][]string
	var body []string
	inFence := false

	for _, line := range lines {
		if fenceLine.MatchString(line) {
			if inFence {
				bodies = append(bodies, body)
				body = nil
			}
			inFence = !inFence
			continue
		}
		if inFence {
			body = append(body, line)
		}
	}
	if inFence {
		return nil, core.SyntaxErrorAt(len(lines), "unbalanced triple-backtick fence")
	}
	if len(bodies) == 0 {
		return nil, nil
	}
	if len(bodies)%2 != 0 {
		return nil, core.SyntaxErrorAt(len(lines), "odd number of fenced sections; search and replace fences must pair up")
	}
	var blocks []Block
	for i := 0; i < len(bodies); i += 2 {
		if len(bodies[i]) == 0 {
			return nil, core.NewError(core.ErrSyntax, "empty search fence in block %d", i/2)
		}
		blocks = append(blocks, Block{Search: bodies[i], Replace: bodies[i+1]})
	}
	return blocks, nil
}

// splitLines splits without inventing a trailing empty line for text that
// ends in a newline.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
