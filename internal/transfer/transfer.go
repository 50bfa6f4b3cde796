// Package transfer reads and writes thought archives.
package transfer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"thinkflow/internal/domain"
)

// WriteText writes the plain-text archive: one block per thought, separated
// by a blank line.
func WriteText(w io.Writer, thoughts []domain.Thought) error {
	bw := bufio.NewWriter(w)
	for i, t := range thoughts {
		if i > 0 {
			if _, err := bw.WriteString("\n"); err != nil {
				return err
			}
		}
		pinned := ""
		if t.Pinned {
			pinned = "[PINNED] "
		}
		stamp := time.UnixMilli(t.CreatedAt).UTC().Format(time.RFC1123)
		if _, err := fmt.Fprintf(bw, "[%s] (%s) %s\n%s\n---\n", stamp, t.Tag, pinned, t.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func WriteJSON(w io.Writer, thoughts []domain.Thought) error {
	if thoughts == nil {
		thoughts = []domain.Thought{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(thoughts)
}

// ParseImport decodes a JSON array of thoughts. A single bad record rejects
// the whole archive.
func ParseImport(r io.Reader) ([]domain.Thought, error) {
	var thoughts []domain.Thought
	dec := json.NewDecoder(r)
	if err := dec.Decode(&thoughts); err != nil {
		return nil, malformed("import", "expected a JSON array of thoughts")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, malformed("import", "unexpected data after the thoughts array")
	}
	if thoughts == nil {
		return nil, malformed("import", "expected a JSON array of thoughts")
	}

	seen := make(map[string]struct{}, len(thoughts))
	for i := range thoughts {
		t := &thoughts[i]
		field := fmt.Sprintf("thoughts[%d]", i)
		t.ID = strings.TrimSpace(t.ID)
		switch {
		case t.ID == "":
			return nil, malformed(field, "missing id")
		case strings.TrimSpace(t.Text) == "":
			return nil, malformed(field, "empty text")
		case utf8.RuneCountInString(strings.TrimSpace(t.Text)) > domain.MaxThoughtLen:
			return nil, malformed(field, fmt.Sprintf("text must be %d characters or less", domain.MaxThoughtLen))
		case !t.Tag.Valid():
			return nil, malformed(field, "unknown tag")
		}
		if _, dup := seen[t.ID]; dup {
			return nil, malformed(field, "duplicate id")
		}
		seen[t.ID] = struct{}{}
		if t.SharedWithFriendIDs == nil {
			t.SharedWithFriendIDs = []string{}
		}
	}
	return thoughts, nil
}

func malformed(field, msg string) error {
	return &domain.ValidationError{
		Fields: map[string]string{field: msg},
		Cause:  domain.ErrMalformedImport,
	}
}
