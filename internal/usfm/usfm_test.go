package usfm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `\id JHN Example
\h John
\mt1 The Gospel of John
\c 1
\p
\v 1 In the beginning was the Word, and the Word was with God.
\v 2 He was with God
\s1 A heading that is not scripture
\v 3 in the beginning. Was it "so?"
\v 4 Trailing words
`

func TestReadSplitsSentences(t *testing.T) {
	got, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, got, 4)

	require.Equal(t, "In the beginning was the Word, and the Word was with God.", got[0].SourceString)
	require.Equal(t, "He was with God in the beginning.", got[1].SourceString)
	require.Equal(t, `Was it "so?"`, got[2].SourceString)
	require.Equal(t, "Trailing words", got[3].SourceString)

	for _, s := range got {
		require.Len(t, s.Chunks, 1)
		require.Empty(t, s.Chunks[0].Gloss)
	}
}

func TestReadAssignsIdentityAndOccurrences(t *testing.T) {
	got, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	first := got[0].Sources()
	require.Equal(t, "1:1:0", first[0].ID)
	require.Equal(t, "1:1", first[0].CV)

	// "the" appears three times in verse 1
	var thes []int
	for _, s := range first {
		if s.Content == "the" {
			thes = append(thes, s.Occurrence)
			require.Equal(t, 3, s.Occurrences)
		}
	}
	require.Equal(t, []int{1, 2, 3}, thes)

	second := got[1].Sources()
	require.Equal(t, "1:2:0", second[0].ID)
	require.Equal(t, "1:3:0", second[4].ID)
	c, start, end := got[1].Reference()
	require.Equal(t, []string{"1", "2", "3"}, []string{c, start, end})

	seen := map[string]bool{}
	for _, s := range got {
		for _, tok := range s.Tokens() {
			require.False(t, seen[tok.ID], "duplicate token id %s", tok.ID)
			seen[tok.ID] = true
		}
	}
}

func TestReadRejectsBareMarker(t *testing.T) {
	_, err := Read(strings.NewReader("\\c 1\n\\v"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
}

func TestReadIgnoresTextBeforeFirstChapter(t *testing.T) {
	got, err := Read(strings.NewReader("stray words.\n\\c 2\n\\v 1 Amen."))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Amen.", got[0].SourceString)
	require.Equal(t, "2:1:0", got[0].Sources()[0].ID)
}

func TestReadWordAttributes(t *testing.T) {
	in := "\\c 1\n" +
		"\\v 1 \\w In|lemma=\"בְּ\" strong=\"H9003\" x-morph=\"He,R\"\\w* \\w beginning|strong=\"H7225\"\\w*.\n" +
		"\\v 1 again.\n"
	got, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "In beginning.", got[0].SourceString)

	first := got[0].Sources()
	require.Equal(t, "In", first[0].Content)
	require.Equal(t, []string{"בְּ"}, first[0].Lemma)
	require.Equal(t, []string{"H9003"}, first[0].Strong)
	require.Equal(t, []string{"He,R"}, first[0].Morph)
	require.Equal(t, "beginning.", first[1].Content)
	require.Equal(t, []string{"H7225"}, first[1].Strong)
	require.Empty(t, first[1].Lemma)

	// a repeated verse marker keeps numbering that verse's words
	require.Equal(t, []string{"1:1:0", "1:1:1"}, []string{first[0].ID, first[1].ID})
	require.Equal(t, "1:1:2", got[1].Sources()[0].ID)
}

func TestReadSkipsNotesAndMilestones(t *testing.T) {
	in := "\\c 2\n" +
		"\\v 1 \\zaln-s |x-strong=\"G3588\" x-occurrence=\"1\"\\*\\w The|x-occurrence=\"1\"\\w*\\zaln-e\\* \\add true\\add* Word\\f + \\fr 2.1 \\ft a note.\\f* came,\n" +
		"\\v 2 \\w and dwelt|G4637\\w*.\n"
	got, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "The true Word came, and dwelt.", got[0].SourceString)

	sources := got[0].Sources()
	require.Equal(t, []string{"G4637"}, sources[5].Lemma)
	require.Equal(t, []string{"G4637"}, sources[4].Lemma)
	require.Equal(t, "2:2:1", sources[5].ID)
}
