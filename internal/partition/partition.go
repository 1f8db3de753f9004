// Package partition keeps a sentence's tokens organised into an ordered
// sequence of non-empty groups and applies the reorder, move and
// split/merge edits an alignment editor issues against it.
//
// Every operation either completes fully or leaves the partition untouched.
// Group indices are positional: callers re-derive them after each edit.
package partition

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrInvalidRange reports a group index or position outside current bounds.
	ErrInvalidRange = errors.New("partition: position out of range")
	// ErrAnchor reports an attempt to open a group before the first token.
	ErrAnchor = errors.New("partition: cannot split before the first token")
	// ErrNoRightToken reports a boundary after the last token of a group.
	ErrNoRightToken = errors.New("partition: no token right of boundary")
)

// Token is one piece of sentence content. ID is unique within a sentence
// and never changes while the token is relocated.
type Token struct {
	ID   string `json:"id"`
	Text string `json:"content"`
}

// Group is an ordered run of tokens forming one alignment chunk.
type Group []Token

// Change names the structural effect of an applied edit.
type Change string

const (
	ChangeNone    Change = ""
	ChangeReorder Change = "reorder"
	ChangeMove    Change = "move"
	ChangeSplit   Change = "split"
	ChangeMerge   Change = "merge"
)

// Partition is the ordered group list for the sentence being edited. It is
// owned by a single editing session and is not safe for concurrent use.
type Partition struct {
	groups []Group
	log    *zap.Logger
}

// Option configures a Partition.
type Option func(*Partition)

// WithLogger routes diagnostics about rejected edits to l.
func WithLogger(l *zap.Logger) Option {
	return func(p *Partition) {
		if l != nil {
			p.log = l
		}
	}
}

// New returns a partition holding every token in a single group, in the
// order given. An empty token list yields a partition with no groups.
func New(tokens []Token, opts ...Option) *Partition {
	p := &Partition{log: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	if len(tokens) > 0 {
		g := make(Group, len(tokens))
		copy(g, tokens)
		p.groups = []Group{g}
	}
	return p
}

// Len returns the number of groups.
func (p *Partition) Len() int { return len(p.groups) }

// GroupLen returns the token count of group i, or -1 when i is out of range.
func (p *Partition) GroupLen(i int) int {
	if i < 0 || i >= len(p.groups) {
		return -1
	}
	return len(p.groups[i])
}

// Group returns a copy of group i.
func (p *Partition) Group(i int) (Group, bool) {
	if i < 0 || i >= len(p.groups) {
		return nil, false
	}
	return append(Group(nil), p.groups[i]...), true
}

// Groups returns a deep copy of the current group list for rendering or
// persistence. Mutating the result does not affect the partition.
func (p *Partition) Groups() []Group {
	out := make([]Group, len(p.groups))
	for i, g := range p.groups {
		out[i] = append(Group(nil), g...)
	}
	return out
}

// Tokens returns every token in group order then in-group order.
func (p *Partition) Tokens() []Token {
	var out []Token
	for _, g := range p.groups {
		out = append(out, g...)
	}
	return out
}

// Reorder moves the token at from to position to inside the same group.
func (p *Partition) Reorder(group, from, to int) (Change, error) {
	if group < 0 || group >= len(p.groups) {
		return ChangeNone, fmt.Errorf("%w: group %d of %d", ErrInvalidRange, group, len(p.groups))
	}
	g := p.groups[group]
	if from < 0 || from >= len(g) || to < 0 || to >= len(g) {
		return ChangeNone, fmt.Errorf("%w: reorder %d->%d in group of %d", ErrInvalidRange, from, to, len(g))
	}
	if from == to {
		return ChangeNone, nil
	}
	tok := g[from]
	g = remove(g, from)
	p.groups[group] = insert(g, to, tok)
	return ChangeReorder, nil
}

// Move relocates the token at srcPos of group src to insertion point dstPos
// of group dst. A source group left empty is removed, shifting every later
// group index down by one. Equal group indices are treated as Reorder.
func (p *Partition) Move(src, srcPos, dst, dstPos int) (Change, error) {
	if src == dst {
		return p.Reorder(src, srcPos, dstPos)
	}
	n := len(p.groups)
	if src < 0 || src >= n || dst < 0 || dst >= n {
		return ChangeNone, fmt.Errorf("%w: move group %d->%d of %d", ErrInvalidRange, src, dst, n)
	}
	if srcPos < 0 || srcPos >= len(p.groups[src]) {
		return ChangeNone, fmt.Errorf("%w: source position %d in group of %d", ErrInvalidRange, srcPos, len(p.groups[src]))
	}
	if dstPos < 0 || dstPos > len(p.groups[dst]) {
		return ChangeNone, fmt.Errorf("%w: destination position %d in group of %d", ErrInvalidRange, dstPos, len(p.groups[dst]))
	}

	tok := p.groups[src][srcPos]
	p.groups[src] = remove(p.groups[src], srcPos)
	p.groups[dst] = insert(p.groups[dst], dstPos, tok)
	if len(p.groups[src]) == 0 {
		p.groups = append(p.groups[:src], p.groups[src+1:]...)
	}
	return ChangeMove, nil
}

// SplitOrMerge applies the boundary gesture at position boundary of group.
// Boundary 0 merges the group into its predecessor; an interior boundary
// cuts the group in two. Boundary 0 of the first group and a boundary past
// the last token are refused without mutation.
func (p *Partition) SplitOrMerge(group, boundary int) (Change, error) {
	if group < 0 || group >= len(p.groups) {
		return ChangeNone, fmt.Errorf("%w: group %d of %d", ErrInvalidRange, group, len(p.groups))
	}
	g := p.groups[group]
	if boundary < 0 || boundary > len(g) {
		return ChangeNone, fmt.Errorf("%w: boundary %d in group of %d", ErrInvalidRange, boundary, len(g))
	}
	switch {
	case boundary == 0 && group == 0:
		return ChangeNone, ErrAnchor
	case boundary == 0:
		prev := p.groups[group-1]
		merged := make(Group, 0, len(prev)+len(g))
		merged = append(merged, prev...)
		merged = append(merged, g...)
		p.groups[group-1] = merged
		p.groups = append(p.groups[:group], p.groups[group+1:]...)
		return ChangeMerge, nil
	case boundary == len(g):
		return ChangeNone, ErrNoRightToken
	}

	left := append(Group(nil), g[:boundary]...)
	right := append(Group(nil), g[boundary:]...)
	groups := make([]Group, 0, len(p.groups)+1)
	groups = append(groups, p.groups[:group]...)
	groups = append(groups, left, right)
	groups = append(groups, p.groups[group+1:]...)
	p.groups = groups
	return ChangeSplit, nil
}

// Check reports the first broken invariant: an empty group, or a token set
// that differs from want (duplicates, losses or strangers).
func (p *Partition) Check(want []Token) error {
	for i, g := range p.groups {
		if len(g) == 0 {
			return fmt.Errorf("partition: group %d is empty", i)
		}
	}
	counts := make(map[string]int, len(want))
	for _, t := range want {
		counts[t.ID]++
	}
	for _, t := range p.Tokens() {
		counts[t.ID]--
		if counts[t.ID] < 0 {
			return fmt.Errorf("partition: token %q duplicated or unknown", t.ID)
		}
	}
	for id, c := range counts {
		if c > 0 {
			return fmt.Errorf("partition: token %q lost", id)
		}
	}
	return nil
}

func remove(g Group, i int) Group {
	return append(g[:i:i], g[i+1:]...)
}

func insert(g Group, i int, t Token) Group {
	g = append(g, Token{})
	copy(g[i+1:], g[i:])
	g[i] = t
	return g
}
