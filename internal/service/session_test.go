package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jask/glossalign/internal/alignment"
	"github.com/jask/glossalign/internal/partition"
)

func words(cv string, ws ...string) alignment.Chunk {
	c := alignment.Chunk{}
	for i, w := range ws {
		c.Source = append(c.Source, alignment.Source{ID: cv + ":" + string(rune('a'+i)), Content: w, CV: cv})
	}
	return c
}

func testDocument() alignment.Document {
	return alignment.Document{
		ID:   "doc",
		Name: "test",
		Sentences: []alignment.Sentence{
			{SourceString: "In the beginning was", Chunks: []alignment.Chunk{words("1:1", "In", "the", "beginning", "was")}},
			{SourceString: "the Word"},
			{SourceString: "and the Word", Chunks: []alignment.Chunk{words("1:2", "and", "the", "Word")}},
		},
	}
}

func texts(g partition.Group) string {
	out := make([]string, len(g))
	for i, t := range g {
		out[i] = t.Text
	}
	return strings.Join(out, " ")
}

func TestSessionOpenStartsWithSingleGroup(t *testing.T) {
	s := NewSession(nil)
	s.Open(testDocument(), 0)

	groups := s.Groups()
	require.Len(t, groups, 1)
	require.Equal(t, "In the beginning was", texts(groups[0]))
	i, n := s.Position()
	require.Equal(t, 0, i)
	require.Equal(t, 3, n)
	require.Empty(t, s.Dirty())
}

func TestSessionOpenClampsIndex(t *testing.T) {
	s := NewSession(nil)
	s.Open(testDocument(), 9)
	i, _ := s.Position()
	require.Equal(t, 2, i)

	s.Open(testDocument(), -4)
	i, _ = s.Position()
	require.Equal(t, 0, i)
}

func TestSessionNavigationClampsAtEnds(t *testing.T) {
	s := NewSession(nil)
	s.Open(testDocument(), 0)

	require.False(t, s.Prev())
	require.True(t, s.Next())
	require.True(t, s.Next())
	require.False(t, s.Next())
	i, _ := s.Position()
	require.Equal(t, 2, i)
	require.False(t, s.Select(3))
}

func TestSessionApplyCommitsChunks(t *testing.T) {
	s := NewSession(nil)
	s.Open(testDocument(), 0)

	require.Equal(t, partition.ChangeSplit, s.Apply(partition.Boundary(0, 2)))
	require.Equal(t, partition.ChangeMove, s.Apply(partition.Move(1, 1, 0, 0)))

	groups := s.Groups()
	require.Len(t, groups, 2)
	require.Equal(t, "was In the", texts(groups[0]))
	require.Equal(t, "beginning", texts(groups[1]))

	sentence := s.Sentence()
	require.Len(t, sentence.Chunks, 2)
	require.Equal(t, "was In the", sentence.Chunks[0].Text())
	require.Equal(t, "1:1", sentence.Chunks[0].Source[0].CV)
	require.Equal(t, []int{0}, s.Dirty())
}

func TestSessionRejectedIntentLeavesSentenceClean(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewSession(zap.New(core))
	s.Open(testDocument(), 0)
	before := s.Sentence()

	require.Equal(t, partition.ChangeNone, s.Apply(partition.Boundary(0, 0)))
	require.Equal(t, partition.ChangeNone, s.Apply(partition.Reorder(4, 0, 1)))
	require.Equal(t, before, s.Sentence())
	require.Empty(t, s.Dirty())
	require.Equal(t, 2, logs.FilterMessage("intent rejected").Len())
}

func TestSessionSelectDiscardsPartition(t *testing.T) {
	s := NewSession(nil)
	s.Open(testDocument(), 0)
	s.Apply(partition.Boundary(0, 1))
	require.Len(t, s.Groups(), 2)

	s.Next()
	s.Prev()
	require.Len(t, s.Groups(), 1)
	// the committed chunks survive navigation
	require.Len(t, s.Sentence().Chunks, 2)
}

func TestSessionUnannotatedSentence(t *testing.T) {
	s := NewSession(nil)
	s.Open(testDocument(), 1)

	require.Equal(t, partition.ChangeSplit, s.Apply(partition.Boundary(0, 1)))
	sentence := s.Sentence()
	require.Len(t, sentence.Chunks, 2)
	require.Equal(t, "item-1", sentence.Chunks[1].Source[0].ID)
	require.Equal(t, "Word", sentence.Chunks[1].Text())
}

func TestSessionGlosses(t *testing.T) {
	s := NewSession(nil)
	s.Open(testDocument(), 0)
	s.Apply(partition.Boundary(0, 3))

	require.NoError(t, s.SetGloss(1, "existed"))
	require.Equal(t, []string{"", "existed"}, s.Glosses())

	// the gloss follows the token it was written for
	s.Apply(partition.Move(1, 0, 0, 0))
	require.Equal(t, []string{"existed"}, s.Glosses())
	s.Apply(partition.Boundary(0, 1))
	require.Equal(t, []string{"existed", ""}, s.Glosses())

	err := s.SetGloss(5, "x")
	require.ErrorIs(t, err, partition.ErrInvalidRange)
}

func TestSessionMarkClean(t *testing.T) {
	s := NewSession(nil)
	s.Open(testDocument(), 2)
	s.Apply(partition.Reorder(0, 0, 2))
	require.Equal(t, []int{2}, s.Dirty())
	s.MarkClean()
	require.Empty(t, s.Dirty())
	require.Equal(t, "the Word and", s.Document().Sentences[2].Chunks[0].Text())
}

func TestSessionEditKeepsWordsOfSourcesWithoutIDs(t *testing.T) {
	doc, err := alignment.ReadJSON(strings.NewReader(
		`[{"chunks":[{"source":[{"content":"In"},{"content":"the"},{"content":"beginning"}]}],"sourceString":"In the beginning"}]`))
	require.NoError(t, err)

	s := NewSession(nil)
	s.Open(doc, 0)
	require.Equal(t, partition.ChangeSplit, s.Apply(partition.Boundary(0, 1)))

	chunks := s.Sentence().Chunks
	require.Len(t, chunks, 2)
	require.Equal(t, "In", chunks[0].Text())
	require.Equal(t, "the beginning", chunks[1].Text())

	require.Equal(t, partition.ChangeMove, s.Apply(partition.Move(1, 1, 0, 0)))
	require.Equal(t, "beginning In", s.Sentence().Chunks[0].Text())
	require.Equal(t, "the", s.Sentence().Chunks[1].Text())
}

func TestSessionFirstEditReplacesSavedChunks(t *testing.T) {
	first := words("1:1", "In", "the")
	first.Gloss = "at first"
	second := words("1:2", "beginning")
	second.Gloss = "origin"
	doc := alignment.Document{ID: "doc", Sentences: []alignment.Sentence{{Chunks: []alignment.Chunk{first, second}}}}

	s := NewSession(nil)
	s.Open(doc, 0)
	require.Len(t, s.Groups(), 1)
	require.Len(t, s.Sentence().Chunks, 2, "loading alone leaves saved chunks alone")
	require.Equal(t, []string{"at first"}, s.Glosses())

	require.NoError(t, s.SetGloss(0, "in the beginning"))
	chunks := s.Sentence().Chunks
	require.Len(t, chunks, 1)
	require.Equal(t, "In the beginning", chunks[0].Text())
	require.Equal(t, "in the beginning", chunks[0].Gloss)
	require.Equal(t, []int{0}, s.Dirty())
}
