// Package alignment holds the document model the editor loads, edits and
// saves: sentences made of glossed chunks of source words.
package alignment

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/jask/glossalign/internal/partition"
)

// Source is one source-language word with its lexical annotations.
// The misspelled JSON keys match files produced by earlier tooling.
type Source struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	CV          string   `json:"cv"`
	Lemma       []string `json:"lemma"`
	Morph       []string `json:"morph"`
	Strong      []string `json:"strong"`
	Occurrence  int      `json:"occurence"`
	Occurrences int      `json:"occurences"`
}

// Chunk is a run of source words paired with a gloss.
type Chunk struct {
	Source []Source `json:"source"`
	Gloss  string   `json:"gloss"`
}

// Text joins the chunk's words with single spaces.
func (c Chunk) Text() string {
	words := make([]string, len(c.Source))
	for i, s := range c.Source {
		words[i] = s.Content
	}
	return strings.Join(words, " ")
}

// Sentence is the unit the editor works on.
type Sentence struct {
	Chunks       []Chunk `json:"chunks"`
	SourceString string  `json:"sourceString"`
}

// Document is an ingested file.
type Document struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Sentences []Sentence `json:"sentences"`
}

// Sources returns the sentence's words in chunk order.
func (s Sentence) Sources() []Source {
	var out []Source
	for _, c := range s.Chunks {
		out = append(out, c.Source...)
	}
	return out
}

// Tokens returns the flat token list for the partition engine. Sentences
// without annotated sources fall back to splitting SourceString on spaces.
// Sources with a missing or repeated id get an item-<n> token id.
func (s Sentence) Tokens() []partition.Token {
	sources := s.Sources()
	if len(sources) > 0 {
		ids := tokenIDs(sources)
		out := make([]partition.Token, len(sources))
		for i, src := range sources {
			out[i] = partition.Token{ID: ids[i], Text: src.Content}
		}
		return out
	}
	words := strings.Fields(s.SourceString)
	out := make([]partition.Token, len(words))
	for i, w := range words {
		out[i] = partition.Token{ID: fmt.Sprintf("item-%d", i), Text: w}
	}
	return out
}

// tokenIDs keeps the first use of every non-empty source id and numbers
// the rest item-<n>, skipping numbers some source already uses as its id.
func tokenIDs(sources []Source) []string {
	taken := make(map[string]bool, len(sources))
	for _, src := range sources {
		if src.ID != "" {
			taken[src.ID] = true
		}
	}
	out := make([]string, len(sources))
	used := make(map[string]bool, len(sources))
	next := 0
	for i, src := range sources {
		if src.ID != "" && !used[src.ID] {
			out[i] = src.ID
			used[src.ID] = true
			continue
		}
		for {
			id := fmt.Sprintf("item-%d", next)
			next++
			if !taken[id] && !used[id] {
				out[i] = id
				used[id] = true
				break
			}
		}
	}
	return out
}

// Glosses returns the gloss of each chunk.
func (s Sentence) Glosses() []string {
	out := make([]string, len(s.Chunks))
	for i, c := range s.Chunks {
		out[i] = c.Gloss
	}
	return out
}

// Reference returns the chapter and verse span covered by the sentence, or
// zeros when its sources carry no chapter:verse tag.
func (s Sentence) Reference() (chapter, startVerse, endVerse string) {
	sources := s.Sources()
	chapter, startVerse, endVerse = "0", "0", "0"
	if len(sources) == 0 {
		return
	}
	if c, v, ok := strings.Cut(sources[0].CV, ":"); ok {
		chapter, startVerse = c, v
	}
	if _, v, ok := strings.Cut(sources[len(sources)-1].CV, ":"); ok {
		endVerse = v
	}
	return
}

// Rebuild replaces the chunks with one chunk per group. Each new chunk keeps
// the gloss of the old chunk it shares most tokens with; ties go to the old
// chunk whose text is closest. An old gloss is handed out at most once.
// Groups must carry the ids Tokens returned; sources are rewritten with them
// so later edits resolve the same way.
func (s *Sentence) Rebuild(groups []partition.Group) {
	sources := s.Sources()
	tokIDs := tokenIDs(sources)
	byID := make(map[string]Source, len(sources))
	for i, src := range sources {
		src.ID = tokIDs[i]
		byID[tokIDs[i]] = src
	}

	type candidate struct {
		ids     map[string]struct{}
		text    string
		gloss   string
		claimed bool
	}
	var olds []*candidate
	offset := 0
	for _, c := range s.Chunks {
		chunkIDs := tokIDs[offset : offset+len(c.Source)]
		offset += len(c.Source)
		if c.Gloss == "" {
			continue
		}
		ids := make(map[string]struct{}, len(chunkIDs))
		for _, id := range chunkIDs {
			ids[id] = struct{}{}
		}
		olds = append(olds, &candidate{ids: ids, text: c.Text(), gloss: c.Gloss})
	}

	chunks := make([]Chunk, 0, len(groups))
	for _, g := range groups {
		ch := Chunk{Source: make([]Source, 0, len(g))}
		for _, tok := range g {
			src, ok := byID[tok.ID]
			if !ok {
				src = Source{ID: tok.ID, Content: tok.Text}
			}
			ch.Source = append(ch.Source, src)
		}

		text := ch.Text()
		var best *candidate
		bestOverlap, bestDist := 0, 0
		for _, o := range olds {
			if o.claimed {
				continue
			}
			overlap := 0
			for _, tok := range g {
				if _, ok := o.ids[tok.ID]; ok {
					overlap++
				}
			}
			if overlap == 0 {
				continue
			}
			dist := levenshtein.ComputeDistance(text, o.text)
			if overlap > bestOverlap || (overlap == bestOverlap && dist < bestDist) {
				best, bestOverlap, bestDist = o, overlap, dist
			}
		}
		if best != nil {
			best.claimed = true
			ch.Gloss = best.gloss
		}
		chunks = append(chunks, ch)
	}
	s.Chunks = chunks
}
