package edit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/winxlab/winx/core"
)

// TestParseMarkerBlocks covers the SEARCH/REPLACE marker form, including the
// occurrence comment and long marker runs.
func TestParseMarkerBlocks(t *testing.T) {
	text := `# occurrence: 2
<<<<<<< SEARCH
old line one
old line two
=======
new line
>>>>>>> REPLACE
<<<<<<<<<< SEARCH
second
==========
replacement
>>>>>>>>>> REPLACE
`
	blocks, err := ParseBlocks(text)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	require.Equal(t, []string{"old line one", "old line two"}, blocks[0].Search)
	require.Equal(t, []string{"new line"}, blocks[0].Replace)
	require.NotNil(t, blocks[0].OccurrenceIndex)
	require.Equal(t, 2, *blocks[0].OccurrenceIndex)

	require.Equal(t, []string{"second"}, blocks[1].Search)
	require.Equal(t, []string{"replacement"}, blocks[1].Replace)
	require.Nil(t, blocks[1].OccurrenceIndex)
}

// TestParseMarkerBlockFailures checks empty search, nesting and missing
// closers are rejected with a line number.
func TestParseMarkerBlockFailures(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"empty search", "<<<<<<< SEARCH\n=======\nnew\n>>>>>>> REPLACE\n"},
		{"nested search", "<<<<<<< SEARCH\na\n<<<<<<< SEARCH\n=======\n>>>>>>> REPLACE\n"},
		{"missing closer", "<<<<<<< SEARCH\na\n=======\nb\n"},
		{"stray replace", "<<<<<<< SEARCH\na\n>>>>>>> REPLACE\n"},
		{"original label", "<<<<<<< ORIGINAL\na\n=======\nb\n>>>>>>> REPLACE\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseBlocks(tc.text)
			require.Error(t, err)
			require.Equal(t, core.ErrSyntax, core.KindOf(err))
			require.Greater(t, err.(*core.AgentError).Line, 0)
		})
	}
}

// TestParsePrefixBlocks covers the search:/replace: form.
func TestParsePrefixBlocks(t *testing.T) {
	text := "search:\nfoo\nbar\nreplace:\nbaz\nsearch:\nqux\nreplace:\n"
	blocks, err := ParseBlocks(text)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	require.Equal(t, []string{"foo", "bar"}, blocks[0].Search)
	require.Equal(t, []string{"baz"}, blocks[0].Replace)
	require.Equal(t, []string{"qux"}, blocks[1].Search)
	require.Empty(t, blocks[1].Replace)
}

// TestParsePrefixBlockFailures: dangling search: and orphan replace:.
func TestParsePrefixBlockFailures(t *testing.T) {
	_, err := ParseBlocks("search:\nfoo\n")
	require.Error(t, err)
	require.Equal(t, core.ErrSyntax, core.KindOf(err))

	_, err = ParseBlocks("replace:\nfoo\n")
	require.Error(t, err)
	require.Equal(t, core.ErrSyntax, core.KindOf(err))
}

// TestParseFenceBlocks pairs triple-backtick fences into blocks.
func TestParseFenceBlocks(t *testing.T) {
	text := "```\nalpha\n```\nsome prose\n```\nbeta\n```\n"
	blocks, err := ParseBlocks(text)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, []string{"alpha"}, blocks[0].Search)
	require.Equal(t, []string{"beta"}, blocks[0].Replace)
}

// TestParseFenceBlockFailures: unbalanced and odd fence counts.
func TestParseFenceBlockFailures(t *testing.T) {
	_, err := ParseBlocks("```\nalpha\n")
	require.Error(t, err)

	_, err = ParseBlocks("```\na\n```\n```\nb\n```\n```\nc\n```\n")
	require.Error(t, err)
}

// TestParseBlocksCompositeError confirms unrecognized text reports all three
// accepted forms.
func TestParseBlocksCompositeError(t *testing.T) {
	_, err := ParseBlocks("just some text\nwith no blocks\n")
	require.Error(t, err)
	require.Equal(t, core.ErrSyntax, core.KindOf(err))
	msg := err.Error()
	require.Contains(t, msg, "SEARCH")
	require.Contains(t, msg, "search:")
	require.Contains(t, msg, "```")
	require.Contains(t, msg, "ORIGINAL")
}
