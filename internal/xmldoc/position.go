package xmldoc

import (
	"strings"
	"unicode/utf8"
)

// Position is a zero-based position in a text, Character is counted in UTF-16 code units.
type Position struct {
	Line      int
	Character int
}

type Range struct {
	Start Position
	End   Position
}

// Change is a text edit, a nil range means the whole text is replaced.
type Change struct {
	Range *Range
	Text  string
}

// OffsetAt returns the byte offset of pos in text. Positions past the end of a line are
// clamped to the end of the line and positions after the last line are clamped to len(text).
func OffsetAt(text string, pos Position) int {
	if pos.Line < 0 {
		return 0
	}

	lineStart := 0
	for line := 0; line < pos.Line; line++ {
		next := nextLineStart(text, lineStart)
		if next < 0 {
			return len(text)
		}
		lineStart = next
	}

	offset := lineStart
	units := 0
	for offset < len(text) && units < pos.Character {
		r, size := utf8.DecodeRuneInString(text[offset:])
		if r == '\n' || r == '\r' {
			break
		}
		units += utf16Len(r)
		offset += size
	}
	return offset
}

// PositionAt is the inverse of OffsetAt.
func PositionAt(text string, offset int) Position {
	if offset > len(text) {
		offset = len(text)
	}
	pos := Position{}
	i := 0
	for i < offset {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == '\r' && i+1 < len(text) && text[i+1] == '\n':
			if i+1 >= offset {
				return pos
			}
			pos.Line++
			pos.Character = 0
			i += 2
			continue
		case r == '\n' || r == '\r':
			pos.Line++
			pos.Character = 0
		default:
			pos.Character += utf16Len(r)
		}
		i += size
	}
	return pos
}

// ApplyChanges applies the changes in order and returns the resulting text.
func ApplyChanges(text string, changes []Change) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}

		start := OffsetAt(text, change.Range.Start)
		end := OffsetAt(text, change.Range.End)
		if end < start {
			start, end = end, start
		}

		var builder strings.Builder
		builder.Grow(len(text) - (end - start) + len(change.Text))
		builder.WriteString(text[:start])
		builder.WriteString(change.Text)
		builder.WriteString(text[end:])
		text = builder.String()
	}
	return text
}

// LineText returns the content of the zero-based line without its terminator.
func LineText(text string, line int) string {
	start := 0
	for i := 0; i < line; i++ {
		start = nextLineStart(text, start)
		if start < 0 {
			return ""
		}
	}
	end := strings.IndexAny(text[start:], "\r\n")
	if end < 0 {
		return text[start:]
	}
	return text[start : start+end]
}

// UTF16Column converts a zero-based column counted in runes to a column counted in UTF-16 code units.
func UTF16Column(lineText string, runeColumn int) int {
	units := 0
	for i, r := range []rune(lineText) {
		if i >= runeColumn {
			return units
		}
		units += utf16Len(r)
	}
	return units + max(0, runeColumn-utf8.RuneCountInString(lineText))
}

func nextLineStart(text string, from int) int {
	index := strings.IndexAny(text[from:], "\r\n")
	if index < 0 {
		return -1
	}
	index += from
	if text[index] == '\r' && index+1 < len(text) && text[index+1] == '\n' {
		return index + 2
	}
	return index + 1
}

func utf16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
