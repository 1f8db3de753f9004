package service

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jask/glossalign/internal/alignment"
	"github.com/jask/glossalign/internal/partition"
)

// Session is the editing state for one open document: the active sentence
// and the partition of its tokens. A new partition is built every time the
// active sentence changes; edits never carry across sentences.
type Session struct {
	log   *zap.Logger
	doc   alignment.Document
	index int
	part  *partition.Partition
	dirty map[int]bool
	rev   int
}

// NewSession returns a session with no document open.
func NewSession(log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{log: log, dirty: map[int]bool{}}
	s.part = partition.New(nil, partition.WithLogger(log))
	return s
}

// Open replaces the session's document and activates sentence index,
// clamped to the document bounds.
func (s *Session) Open(doc alignment.Document, index int) {
	s.doc = doc
	s.dirty = map[int]bool{}
	if index >= len(doc.Sentences) {
		index = len(doc.Sentences) - 1
	}
	if index < 0 {
		index = 0
	}
	s.load(index)
}

// Select activates sentence i. It reports false and keeps the current
// partition when i is out of range.
func (s *Session) Select(i int) bool {
	if i < 0 || i >= len(s.doc.Sentences) {
		return false
	}
	s.load(i)
	return true
}

func (s *Session) Next() bool { return s.Select(s.index + 1) }

func (s *Session) Prev() bool { return s.Select(s.index - 1) }

func (s *Session) load(i int) {
	s.index = i
	var toks []partition.Token
	if i < len(s.doc.Sentences) {
		toks = s.doc.Sentences[i].Tokens()
	}
	s.part = partition.New(toks, partition.WithLogger(s.log.With(zap.Int("sentence", i))))
}

// Document returns the open document including uncommitted-to-disk edits.
func (s *Session) Document() alignment.Document { return s.doc }

// Position returns the active sentence index and the sentence count.
func (s *Session) Position() (index, total int) { return s.index, len(s.doc.Sentences) }

// Sentence returns the active sentence.
func (s *Session) Sentence() alignment.Sentence {
	if s.index >= len(s.doc.Sentences) {
		return alignment.Sentence{}
	}
	return s.doc.Sentences[s.index]
}

// Groups returns the current partition for rendering.
func (s *Session) Groups() []partition.Group { return s.part.Groups() }

// GroupLen returns the token count of group i, or -1 when out of range.
func (s *Session) GroupLen(i int) int { return s.part.GroupLen(i) }

// Glosses returns the gloss shown next to each group.
func (s *Session) Glosses() []string {
	preview := s.Sentence()
	preview.Rebuild(s.part.Groups())
	return preview.Glosses()
}

// Apply forwards a gesture intent to the partition and, when it changed
// anything, writes the new grouping back into the sentence's chunks.
func (s *Session) Apply(in partition.Intent) partition.Change {
	ch := s.part.Apply(in)
	if ch != partition.ChangeNone {
		s.commit()
		s.log.Debug("intent applied", zap.String("change", string(ch)), zap.Int("sentence", s.index), zap.Int("groups", s.part.Len()))
	}
	return ch
}

// SetGloss sets the gloss of the chunk rendered as group.
func (s *Session) SetGloss(group int, gloss string) error {
	if group < 0 || group >= s.part.Len() {
		return fmt.Errorf("set gloss: %w: group %d of %d", partition.ErrInvalidRange, group, s.part.Len())
	}
	s.commit()
	s.doc.Sentences[s.index].Chunks[group].Gloss = gloss
	return nil
}

func (s *Session) commit() {
	if s.index >= len(s.doc.Sentences) {
		return
	}
	s.doc.Sentences[s.index].Rebuild(s.part.Groups())
	s.dirty[s.index] = true
	s.rev++
}

// Revision counts committed edits. It lets a caller tell whether the
// session changed while a save was in flight.
func (s *Session) Revision() int { return s.rev }

// Dirty returns the indices of sentences edited since Open or MarkClean.
func (s *Session) Dirty() []int {
	out := make([]int, 0, len(s.dirty))
	for i := range s.dirty {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (s *Session) MarkClean() { s.dirty = map[int]bool{} }
