package partition

import (
	"errors"

	"go.uber.org/zap"
)

// Kind discriminates gesture intents.
type Kind string

const (
	KindReorder  Kind = "reorder"
	KindMove     Kind = "move"
	KindBoundary Kind = "boundary"
)

// Intent is a normalized gesture report. Only the fields of its Kind are read.
type Intent struct {
	Kind Kind `json:"kind"`

	// reorder and boundary
	GroupIndex int `json:"groupIndex"`
	// reorder
	From int `json:"from"`
	To   int `json:"to"`
	// move
	SourceGroup int `json:"sourceGroup"`
	SourcePos   int `json:"sourcePos"`
	DestGroup   int `json:"destGroup"`
	DestPos     int `json:"destPos"`
	// boundary
	BoundaryPosition int `json:"boundaryPosition"`
}

func Reorder(group, from, to int) Intent {
	return Intent{Kind: KindReorder, GroupIndex: group, From: from, To: to}
}

func Move(srcGroup, srcPos, dstGroup, dstPos int) Intent {
	return Intent{Kind: KindMove, SourceGroup: srcGroup, SourcePos: srcPos, DestGroup: dstGroup, DestPos: dstPos}
}

func Boundary(group, position int) Intent {
	return Intent{Kind: KindBoundary, GroupIndex: group, BoundaryPosition: position}
}

// Apply performs in against the partition. Stale or structurally invalid
// intents are logged and dropped; the partition is then unchanged and
// ChangeNone is returned.
func (p *Partition) Apply(in Intent) Change {
	var (
		ch  Change
		err error
	)
	switch in.Kind {
	case KindReorder:
		ch, err = p.Reorder(in.GroupIndex, in.From, in.To)
	case KindMove:
		ch, err = p.Move(in.SourceGroup, in.SourcePos, in.DestGroup, in.DestPos)
	case KindBoundary:
		ch, err = p.SplitOrMerge(in.GroupIndex, in.BoundaryPosition)
	default:
		p.log.Debug("unknown intent kind", zap.String("kind", string(in.Kind)))
		return ChangeNone
	}
	if err != nil {
		p.log.Debug("intent rejected",
			zap.String("kind", string(in.Kind)),
			zap.String("class", classify(err)),
			zap.Any("intent", in),
			zap.Int("groups", len(p.groups)),
			zap.Error(err))
		return ChangeNone
	}
	return ch
}

func classify(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrAnchor), errors.Is(err, ErrNoRightToken):
		return "structural"
	default:
		return "unknown"
	}
}
