// Package text cleans request text before it is handed to the speech model.
//
// The cleaning is language-neutral: it only touches whitespace, control
// characters, typographic quotes and dashes, and runs of punctuation, so it is
// safe for every language the multilingual model accepts.
package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	whitespaceRegexPattern = `\s+`
	dotRunRegexPattern     = `\.{4,}`
)

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Cleaner normalizes text for synthesis.
type Cleaner struct {
	whitespacePattern *regexp.Regexp
	dotRunPattern     *regexp.Regexp
	typography        *strings.Replacer
}

// NewCleaner creates a Cleaner with compiled patterns.
func NewCleaner() *Cleaner {
	return &Cleaner{
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		dotRunPattern:     regexp.MustCompile(dotRunRegexPattern),
		typography: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Clean returns text with control characters removed, whitespace collapsed,
// typography normalized, repeated punctuation collapsed and a terminal
// sentence mark ensured. Empty or blank input yields "".
func (c *Cleaner) Clean(text string) string {
	cleaned := strings.Map(dropControl, text)
	cleaned = c.whitespacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return ""
	}

	cleaned = c.typography.Replace(cleaned)
	cleaned = collapseRepeatedPunctuation(cleaned)
	cleaned = c.dotRunPattern.ReplaceAllString(cleaned, ellipsis)

	return ensureSentenceEnding(cleaned)
}

func dropControl(char rune) rune {
	if unicode.IsControl(char) && !unicode.IsSpace(char) {
		return -1
	}

	return char
}

// collapseRepeatedPunctuation turns "!!!" into "!" but leaves dots alone so
// ellipses survive, and keeps mixed runs such as "?!".
func collapseRepeatedPunctuation(text string) string {
	var builder strings.Builder

	builder.Grow(len(text))

	var last rune

	for _, char := range text {
		if char == last && char != '.' && unicode.IsPunct(char) {
			continue
		}

		builder.WriteRune(char)

		last = char
	}

	return builder.String()
}

func ensureSentenceEnding(text string) string {
	lastChar, _ := utf8.DecodeLastRuneInString(text)

	switch lastChar {
	case '.', '!', '?', '。', '！', '？', '"', '\'', ')':
		return text
	default:
		return text + "."
	}
}
