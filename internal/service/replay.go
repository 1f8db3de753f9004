package service

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jask/glossalign/internal/partition"
)

// ReadIntents parses one JSON intent per line. Blank lines and lines
// starting with # are skipped.
func ReadIntents(r io.Reader) ([]partition.Intent, error) {
	var out []partition.Intent
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var in partition.Intent
		if err := json.Unmarshal([]byte(text), &in); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, in)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplayStep records the outcome of one replayed intent.
type ReplayStep struct {
	Intent partition.Intent
	Change partition.Change
}

// Replay applies intents in order to the session's active sentence.
// Rejected intents are kept in the result with ChangeNone.
func Replay(sess *Session, intents []partition.Intent) []ReplayStep {
	steps := make([]ReplayStep, 0, len(intents))
	for _, in := range intents {
		steps = append(steps, ReplayStep{Intent: in, Change: sess.Apply(in)})
	}
	return steps
}

// FormatGroups renders groups one per line as "index: tokens | gloss".
func FormatGroups(groups []partition.Group, glosses []string) string {
	var b strings.Builder
	for i, g := range groups {
		words := make([]string, len(g))
		for j, t := range g {
			words[j] = t.Text
		}
		fmt.Fprintf(&b, "%d: %s", i, strings.Join(words, " "))
		if i < len(glosses) && glosses[i] != "" {
			fmt.Fprintf(&b, " | %s", glosses[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
