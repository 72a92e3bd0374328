package braille

import "unicode"

// Lang selects the capital-sign variant used during transliteration
type Lang string

const (
	// LangEN uses the dot-6 capital sign
	LangEN Lang = "en"
	// LangNL uses the dots-4-6 capital sign
	LangNL Lang = "nl"
)

// Reserved glyphs. Blank is a real glyph (an empty cell the display renders),
// distinct from "no character"; Unknown is a full cell so unmapped input is
// visible rather than silently blank.
const (
	GlyphBlank   = "⠀" // U+2800, no dots
	GlyphUnknown = "⠿" // dots 1-2-3-4-5-6
	GlyphNumber  = "⠼" // dots 3-4-5-6
	capitalEN    = "⠠" // dot 6
	capitalNL    = "⠨" // dots 4-6
)

// letterGlyphs maps lowercase letters to their base braille cells
var letterGlyphs = map[rune]string{
	'a': "⠁", 'b': "⠃", 'c': "⠉", 'd': "⠙", 'e': "⠑",
	'f': "⠋", 'g': "⠛", 'h': "⠓", 'i': "⠊", 'j': "⠚",
	'k': "⠅", 'l': "⠇", 'm': "⠍", 'n': "⠝", 'o': "⠕",
	'p': "⠏", 'q': "⠟", 'r': "⠗", 's': "⠎", 't': "⠞",
	'u': "⠥", 'v': "⠧", 'w': "⠺", 'x': "⠭", 'y': "⠽",
	'z': "⠵",
}

// digitGlyphs maps digits to the a-j cells they share under the number sign
var digitGlyphs = map[rune]string{
	'1': "⠁", '2': "⠃", '3': "⠉", '4': "⠙", '5': "⠑",
	'6': "⠋", '7': "⠛", '8': "⠓", '9': "⠊", '0': "⠚",
}

// punctGlyphs maps recognized punctuation to fixed cells. Paired punctuation
// uses two codepoints.
var punctGlyphs = map[rune]string{
	',':  "⠂",
	';':  "⠆",
	':':  "⠒",
	'.':  "⠲",
	'?':  "⠦",
	'!':  "⠖",
	'-':  "⠤",
	'\'': "⠄",
	'(':  "⠐⠣",
	')':  "⠐⠜",
}

// Translator supplies base glyphs for single characters, typically backed by
// an external transliteration table. Its output covers the base cell only;
// the number-sign and capital-sign prefixes are always applied here, so an
// incomplete translator cannot produce a line that violates those rules.
type Translator interface {
	TranslateRune(r rune) (glyph string, ok bool)
}

// ToGlyphs transliterates text into one braille glyph (one or two
// codepoints) per input character. The pass is stateful left to right: a
// number sign is emitted only at the start of a maximal run of consecutive
// digits, and uppercase letters are prefixed with the capital sign of the
// given language.
func ToGlyphs(text string, lang Lang) []string {
	return Transliterate(text, lang, nil)
}

// Transliterate is ToGlyphs with an optional external translator consulted
// first for base glyphs.
func Transliterate(text string, lang Lang, translator Translator) []string {
	glyphs := make([]string, 0, len(text))
	inDigitRun := false

	for _, r := range text {
		isDigit := unicode.IsDigit(r)

		base, ok := baseGlyph(r, translator)
		if !ok {
			glyphs = append(glyphs, GlyphUnknown)
			inDigitRun = false
			continue
		}

		switch {
		case isDigit:
			if inDigitRun {
				glyphs = append(glyphs, base)
			} else {
				glyphs = append(glyphs, GlyphNumber+base)
			}
		case unicode.IsUpper(r):
			glyphs = append(glyphs, capitalSign(lang)+base)
		default:
			glyphs = append(glyphs, base)
		}
		inDigitRun = isDigit
	}

	return glyphs
}

// baseGlyph resolves the base cell for a character, consulting the external
// translator first. Translator output for digits and uppercase letters is
// taken as the bare cell; prefixes are corrected by the caller.
func baseGlyph(r rune, translator Translator) (string, bool) {
	lower := unicode.ToLower(r)

	if translator != nil {
		if g, ok := translator.TranslateRune(lower); ok && g != "" {
			return stripPrefixes(g), true
		}
	}

	if r == ' ' {
		return GlyphBlank, true
	}
	if g, ok := digitGlyphs[r]; ok {
		return g, true
	}
	if g, ok := letterGlyphs[lower]; ok {
		return g, true
	}
	if g, ok := punctGlyphs[r]; ok {
		return g, true
	}
	return "", false
}

// stripPrefixes removes a leading number or capital sign an external
// translator may have emitted on its own, so the stateful pass stays the
// single authority for prefixes.
func stripPrefixes(glyph string) string {
	runes := []rune(glyph)
	for len(runes) > 1 {
		switch string(runes[0]) {
		case GlyphNumber, capitalEN, capitalNL:
			runes = runes[1:]
		default:
			return string(runes)
		}
	}
	return string(runes)
}

func capitalSign(lang Lang) string {
	if lang == LangNL {
		return capitalNL
	}
	return capitalEN
}

// CapitalSign returns the capital-sign glyph for the given language
func CapitalSign(lang Lang) string {
	return capitalSign(lang)
}
