package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// ExportFileName builds "<Title_with_underscores>_<id8>.<ext>". Letters keep
// their accents; whitespace becomes underscores.
func ExportFileName(title, id, ext string) string {
	base := SanitizeFileName(title)
	base = strings.Join(strings.Fields(base), "_")
	if base == "" {
		base = "book"
	}
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	name := base
	if short != "" {
		name += "_" + short
	}
	if ext != "" {
		name += "." + ext
	}
	return name
}

// ASCIIFileName drops non-ASCII runes from name, for Content-Disposition
// fallbacks.
func ASCIIFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < utf8.RuneSelf && unicode.IsPrint(r) && r != '"' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Excerpt returns at most maxRunes runes from the end of text, starting at a
// word boundary when possible.
func Excerpt(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if maxRunes <= 0 || text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	tail := string(runes[len(runes)-maxRunes:])
	if idx := strings.IndexFunc(tail, unicode.IsSpace); idx >= 0 && idx < len(tail)/2 {
		tail = tail[idx:]
	}
	return "…" + strings.TrimSpace(tail)
}

// Truncate shortens text to maxRunes runes, appending an ellipsis when cut.
func Truncate(text string, maxRunes int) string {
	runes := []rune(strings.TrimSpace(text))
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
