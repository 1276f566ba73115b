package source

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// Position is a zero-based line and UTF-16 code unit offset, as editors
// report them.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Change is one edit. A nil Range replaces the whole text.
type Change struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// Full returns a whole-text replacement.
func Full(text string) Change {
	return Change{Text: text}
}

// Patch returns a ranged replacement.
func Patch(start, end Position, text string) Change {
	return Change{Range: &Range{Start: start, End: end}, Text: text}
}

// applyChanges applies changes to text in order.
func applyChanges(text string, changes []Change) (string, error) {
	for _, ch := range changes {
		if ch.Range == nil {
			text = ch.Text
			continue
		}
		start, err := offset(text, ch.Range.Start)
		if err != nil {
			return "", err
		}
		end, err := offset(text, ch.Range.End)
		if err != nil {
			return "", err
		}
		if end < start {
			return "", fmt.Errorf("range end %v before start %v", ch.Range.End, ch.Range.Start)
		}
		text = text[:start] + ch.Text + text[end:]
	}
	return text, nil
}

// offset converts pos to a byte offset in text. A character past the end of
// its line clamps to the line end; a line past the end of text is an error
// unless it is the line just after a trailing newline.
func offset(text string, pos Position) (int, error) {
	if pos.Line < 0 || pos.Character < 0 {
		return 0, fmt.Errorf("negative position %v", pos)
	}
	i := 0
	for line := 0; line < pos.Line; line++ {
		nl := indexNewline(text[i:])
		if nl < 0 {
			return 0, fmt.Errorf("line %d out of range", pos.Line)
		}
		i += nl + 1
	}
	units := 0
	for i < len(text) && units < pos.Character {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == '\n' {
			break
		}
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += n
		i += size
	}
	return i, nil
}

func indexNewline(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}
