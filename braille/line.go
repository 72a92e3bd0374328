// Package braille owns the fixed-width line buffer that is the source of
// truth for what is sent to the display, answers cursor-position queries
// against it, and transliterates print text into braille glyphs.
package braille

import (
	"strings"
)

// DefaultCells is the cell count of a standard 40-cell display line
const DefaultCells = 40

// WordSpan is a word together with the half-open cell range it occupies
type WordSpan struct {
	Word  string `json:"word"`
	Start int    `json:"start"`
	End   int    `json:"end"` // exclusive
}

// Contains reports whether the span covers the given cell index
func (s WordSpan) Contains(index int) bool {
	return index >= s.Start && index < s.End
}

// Line maintains a fixed-width character buffer. The buffer always holds
// exactly Cells() characters; empty content is all spaces. Every mutation
// replaces the whole buffer rather than patching it.
type Line struct {
	cells      int
	separators string
	text       []rune
	tokenAt    map[int]int // occupied cell index -> token ordinal
	tokens     []string
}

// Option configures a Line
type Option func(*Line)

// WithCells sets the cell count of the line buffer
func WithCells(cells int) Option {
	return func(l *Line) {
		if cells > 0 {
			l.cells = cells
		}
	}
}

// WithSeparators sets the characters treated as word separators by the
// fallback scan in WordSpanAt. Defaults to a single space.
func WithSeparators(separators string) Option {
	return func(l *Line) {
		if separators != "" {
			l.separators = separators
		}
	}
}

// NewLine creates an empty line of DefaultCells cells unless configured otherwise
func NewLine(opts ...Option) *Line {
	l := &Line{
		cells:      DefaultCells,
		separators: " ",
	}
	for _, opt := range opts {
		opt(l)
	}
	l.text = blankBuffer(l.cells)
	return l
}

// Cells returns the fixed width of the line
func (l *Line) Cells() int {
	return l.cells
}

// Text returns the current buffer contents, always exactly Cells() characters
func (l *Line) Text() string {
	return string(l.text)
}

// SetText normalizes text (internal whitespace runs collapse to single
// spaces, leading/trailing whitespace is trimmed), pads or truncates it to
// the cell count, and replaces the buffer. Any token map from a previous
// SetTokens is discarded. It reports whether the buffer actually changed, so
// callers can skip redundant device writes.
func (l *Line) SetText(text string) bool {
	normalized := strings.Join(strings.Fields(text), " ")
	next := padToCells(normalized, l.cells)

	l.tokenAt = nil
	l.tokens = nil

	if string(l.text) == string(next) {
		return false
	}
	l.text = next
	return true
}

// SetTokens lays tokens left to right separated by single spaces, stopping
// before the line would overflow, and records which cell belongs to which
// token. WordSpanAt then returns the logical token rather than a re-scanned
// substring, which matters when tokens contain embedded spaces or
// punctuation that would break word-boundary scanning. It reports whether
// the buffer changed.
func (l *Line) SetTokens(tokens []string) bool {
	buf := blankBuffer(l.cells)
	tokenAt := make(map[int]int)
	var kept []string

	pos := 0
	for _, token := range tokens {
		if token == "" {
			continue
		}
		runes := []rune(token)
		start := pos
		if len(kept) > 0 {
			start = pos + 1 // separator space
		}
		if start+len(runes) > l.cells {
			break
		}
		for i, r := range runes {
			buf[start+i] = r
			tokenAt[start+i] = len(kept)
		}
		kept = append(kept, token)
		pos = start + len(runes)
	}

	if string(l.text) == string(buf) && mapsEqual(l.tokenAt, tokenAt) {
		return false
	}

	l.text = buf
	l.tokenAt = tokenAt
	l.tokens = kept
	return true
}

// CharAt returns the character at index, or false if out of range
func (l *Line) CharAt(index int) (rune, bool) {
	if index < 0 || index >= l.cells {
		return 0, false
	}
	return l.text[index], true
}

// WordAt returns the word covering index, or false if index is out of
// range, a separator, or inside blank padding.
func (l *Line) WordAt(index int) (string, bool) {
	span, ok := l.WordSpanAt(index)
	if !ok {
		return "", false
	}
	return span.Word, true
}

// WordSpanAt resolves index to a word and its cell range. A token laid by
// SetTokens wins; otherwise the buffer is scanned left and right from index
// until a separator is hit. The returned span always contains index and
// never contains a separator.
func (l *Line) WordSpanAt(index int) (WordSpan, bool) {
	if index < 0 || index >= l.cells {
		return WordSpan{}, false
	}

	if ordinal, ok := l.tokenAt[index]; ok {
		start, end := index, index+1
		for start > 0 {
			if o, ok := l.tokenAt[start-1]; ok && o == ordinal {
				start--
				continue
			}
			break
		}
		for end < l.cells {
			if o, ok := l.tokenAt[end]; ok && o == ordinal {
				end++
				continue
			}
			break
		}
		return WordSpan{Word: l.tokens[ordinal], Start: start, End: end}, true
	}

	if l.isSeparator(l.text[index]) {
		return WordSpan{}, false
	}

	start, end := index, index+1
	for start > 0 && !l.isSeparator(l.text[start-1]) {
		start--
	}
	for end < l.cells && !l.isSeparator(l.text[end]) {
		end++
	}

	word := strings.TrimSpace(string(l.text[start:end]))
	if word == "" {
		return WordSpan{}, false
	}
	return WordSpan{Word: word, Start: start, End: end}, true
}

func (l *Line) isSeparator(r rune) bool {
	return strings.ContainsRune(l.separators, r)
}

func blankBuffer(cells int) []rune {
	buf := make([]rune, cells)
	for i := range buf {
		buf[i] = ' '
	}
	return buf
}

func padToCells(text string, cells int) []rune {
	runes := []rune(text)
	if len(runes) > cells {
		return runes[:cells]
	}
	buf := blankBuffer(cells)
	copy(buf, runes)
	return buf
}

func mapsEqual(a, b map[int]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
