package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/glossalign/internal/alignment"
	"github.com/jask/glossalign/internal/partition"
)

func TestReadIntents(t *testing.T) {
	in := `
# split then drag
{"kind":"boundary","groupIndex":0,"boundaryPosition":2}
{"kind":"move","sourceGroup":1,"sourcePos":0,"destGroup":0,"destPos":0}

{"kind":"reorder","groupIndex":0,"from":0,"to":1}
`
	got, err := ReadIntents(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []partition.Intent{
		partition.Boundary(0, 2),
		partition.Move(1, 0, 0, 0),
		partition.Reorder(0, 0, 1),
	}, got)
}

func TestReadIntentsReportsLine(t *testing.T) {
	_, err := ReadIntents(strings.NewReader("{\"kind\":\"move\"}\nnot json\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
}

func TestReplay(t *testing.T) {
	sess := NewSession(nil)
	sess.Open(alignment.Document{Sentences: []alignment.Sentence{{SourceString: "A B C D"}}}, 0)

	steps := Replay(sess, []partition.Intent{
		partition.Boundary(0, 2),
		partition.Boundary(0, 0),
		partition.Move(1, 0, 0, 0),
		partition.Reorder(0, 0, 2),
	})
	changes := make([]partition.Change, len(steps))
	for i, s := range steps {
		changes[i] = s.Change
	}
	require.Equal(t, []partition.Change{
		partition.ChangeSplit,
		partition.ChangeNone,
		partition.ChangeMove,
		partition.ChangeReorder,
	}, changes)
	require.Equal(t, "0: A B C\n1: D\n", FormatGroups(sess.Groups(), sess.Glosses()))
}

func TestFormatGroupsShowsGloss(t *testing.T) {
	groups := []partition.Group{{{ID: "1", Text: "In"}, {ID: "2", Text: "the"}}, {{ID: "3", Text: "end"}}}
	require.Equal(t, "0: In the | at the\n1: end\n", FormatGroups(groups, []string{"at the", ""}))
}
