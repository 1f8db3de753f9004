// Package usfm reads the subset of USFM the editor needs: chapter and verse
// markers, the words between them and the lexical attributes of \w words,
// grouped into sentences.
package usfm

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jask/glossalign/internal/alignment"
)

// markers whose remaining line text is metadata, not scripture
var headerMarkers = map[string]bool{
	"id": true, "ide": true, "h": true, "rem": true, "sts": true,
	"toc1": true, "toc2": true, "toc3": true,
	"mt": true, "mt1": true, "mt2": true, "mt3": true,
	"s": true, "s1": true, "s2": true, "s3": true, "r": true, "d": true,
}

// notes are skipped up to their closing marker
var noteMarkers = map[string]bool{"f": true, "fe": true, "x": true}

var attrPattern = regexp.MustCompile(`([\w-]+)\s*=\s*"([^"]*)"`)

// item is one lexed piece of a line: a marker or a word.
type item struct {
	marker  string
	closing bool
	text    string
	attrs   string
}

// Read parses r into sentences. Each sentence starts as one unglossed chunk
// holding all of its words. Word ids are <chapter>:<verse>:<n>, numbered on
// from the last word of that verse when a verse marker repeats.
func Read(r io.Reader) ([]alignment.Sentence, error) {
	var (
		words   []alignment.Source
		chapter string
		verse   string
		note    string
	)
	next := make(map[string]int)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		items := lex(sc.Text())
	items:
		for i := 0; i < len(items); i++ {
			it := items[i]
			if note != "" {
				if it.closing && it.marker == note {
					note = ""
				}
				continue
			}
			if it.marker != "" {
				if it.closing {
					continue
				}
				switch {
				case it.marker == "c" || it.marker == "v":
					if i+1 >= len(items) || items[i+1].text == "" {
						return nil, fmt.Errorf("line %d: \\%s without number", line, it.marker)
					}
					i++
					if it.marker == "c" {
						chapter, verse = items[i].text, "0"
					} else {
						verse = items[i].text
					}
				case noteMarkers[it.marker]:
					note = it.marker
				case headerMarkers[it.marker]:
					break items
				}
				continue
			}
			if chapter == "" {
				continue
			}
			cv := chapter + ":" + verse
			src := alignment.Source{
				ID:      fmt.Sprintf("%s:%d", cv, next[cv]),
				Content: it.text,
				CV:      cv,
			}
			next[cv]++
			setAttributes(&src, it.attrs)
			words = append(words, src)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan usfm: %w", err)
	}
	countOccurrences(words)
	return sentences(words), nil
}

// lex splits a line into markers and words. A \w span becomes one word per
// space-separated part of its text, each carrying the span's attributes;
// punctuation glued to the closing \w* stays with the last word.
func lex(line string) []item {
	var out []item
	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case isSpace(c):
			i++
		case c == '\\':
			j := i + 1
			for j < len(line) && !isSpace(line[j]) && line[j] != '\\' && line[j] != '*' && line[j] != '|' {
				j++
			}
			name := line[i+1 : j]
			if j < len(line) && line[j] == '*' {
				out = append(out, item{marker: name, closing: true})
				i = j + 1
				continue
			}
			i = j
			switch {
			case strings.HasSuffix(name, "-s") || strings.HasSuffix(name, "-e"):
				// milestone: attributes run up to the self-closing \*
				if k := strings.Index(line[i:], `\*`); k >= 0 {
					i += k + 2
				}
			case name == "w":
				body := line[i:]
				if k := strings.Index(body, `\w*`); k >= 0 {
					body = body[:k]
					i += k + 3
				} else {
					i = len(line)
				}
				k := i
				for k < len(line) && !isSpace(line[k]) && line[k] != '\\' {
					k++
				}
				text, attrs, _ := strings.Cut(body, "|")
				parts := strings.Fields(text)
				if len(parts) > 0 {
					parts[len(parts)-1] += line[i:k]
				}
				for _, p := range parts {
					out = append(out, item{text: p, attrs: attrs})
				}
				i = k
			default:
				out = append(out, item{marker: name})
			}
		default:
			j := i
			for j < len(line) && !isSpace(line[j]) && line[j] != '\\' {
				j++
			}
			out = append(out, item{text: line[i:j]})
			i = j
		}
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// setAttributes fills the lexical fields from a \w attribute list. A bare
// value is the default lemma attribute.
func setAttributes(src *alignment.Source, attrs string) {
	attrs = strings.TrimSpace(attrs)
	if attrs == "" {
		return
	}
	if !strings.Contains(attrs, "=") {
		src.Lemma = splitValues(attrs)
		return
	}
	for _, m := range attrPattern.FindAllStringSubmatch(attrs, -1) {
		switch m[1] {
		case "lemma", "x-lemma":
			src.Lemma = append(src.Lemma, splitValues(m[2])...)
		case "strong", "x-strong":
			src.Strong = append(src.Strong, splitValues(m[2])...)
		case "x-morph":
			src.Morph = append(src.Morph, m[2])
		}
	}
}

func splitValues(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func countOccurrences(words []alignment.Source) {
	type key struct{ cv, content string }
	totals := make(map[key]int)
	for _, w := range words {
		totals[key{w.CV, w.Content}]++
	}
	seen := make(map[key]int)
	for i := range words {
		k := key{words[i].CV, words[i].Content}
		seen[k]++
		words[i].Occurrence = seen[k]
		words[i].Occurrences = totals[k]
	}
}

func sentences(words []alignment.Source) []alignment.Sentence {
	var (
		out     []alignment.Sentence
		current []alignment.Source
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		text := make([]string, len(current))
		for i, w := range current {
			text[i] = w.Content
		}
		out = append(out, alignment.Sentence{
			Chunks:       []alignment.Chunk{{Source: current}},
			SourceString: strings.Join(text, " "),
		})
		current = nil
	}
	for _, w := range words {
		current = append(current, w)
		if endsSentence(w.Content) {
			flush()
		}
	}
	flush()
	return out
}

func endsSentence(word string) bool {
	word = strings.TrimRight(word, `"'”’»)`)
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "?") || strings.HasSuffix(word, "!")
}
