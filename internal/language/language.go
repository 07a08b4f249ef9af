package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"
)

// Default is the language assumed for books created without one.
const Default = "fr"

type entry struct {
	code    string
	display string
	labels  Labels
}

// Labels are the fixed strings an exported book prints in its own language.
type Labels struct {
	Chapter  string
	Contents string
	By       string
}

var languages = []entry{
	{"en", "English", Labels{Chapter: "Chapter", Contents: "Table of Contents", By: "by"}},
	{"fr", "French", Labels{Chapter: "Chapitre", Contents: "Table des matières", By: "par"}},
	{"es", "Spanish", Labels{Chapter: "Capítulo", Contents: "Índice", By: "por"}},
	{"de", "German", Labels{Chapter: "Kapitel", Contents: "Inhaltsverzeichnis", By: "von"}},
	{"it", "Italian", Labels{Chapter: "Capitolo", Contents: "Indice", By: "di"}},
	{"pt", "Portuguese", Labels{Chapter: "Capítulo", Contents: "Sumário", By: "por"}},
	{"nl", "Dutch", Labels{Chapter: "Hoofdstuk", Contents: "Inhoudsopgave", By: "door"}},
}

var (
	byCode  map[string]*entry
	matcher xlanguage.Matcher
)

func init() {
	byCode = make(map[string]*entry, len(languages))
	tags := make([]xlanguage.Tag, 0, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode[e.code] = e
		tags = append(tags, xlanguage.MustParse(e.code))
	}
	// English is listed first, which makes it the matcher's fallback.
	matcher = xlanguage.NewMatcher(tags)
}

// Normalize canonicalizes a BCP-47 tag ("FR-ca" -> "fr-CA"). It returns an
// error for malformed tags and Default for empty input.
func Normalize(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Default, nil
	}
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", code, err)
	}
	return tag.String(), nil
}

// Base returns the ISO 639-1 base of a tag ("fr-CA" -> "fr"), or "" when the tag
// cannot be parsed.
func Base(code string) string {
	tag, err := xlanguage.Parse(strings.TrimSpace(code))
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

func lookup(code string) *entry {
	tag, err := xlanguage.Parse(strings.TrimSpace(code))
	if err != nil {
		return byCode["en"]
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == xlanguage.No {
		return byCode["en"]
	}
	return &languages[index]
}

// LabelsFor returns the localized labels for code, falling back to English.
func LabelsFor(code string) Labels {
	return lookup(code).labels
}

// ChapterHeading formats "Chapter 3" in the book's language.
func ChapterHeading(code string, number int) string {
	return fmt.Sprintf("%s %d", LabelsFor(code).Chapter, number)
}

// DisplayName returns the English name of the language, used in prompts.
// Unmatched tags return the tag itself.
func DisplayName(code string) string {
	tag, err := xlanguage.Parse(strings.TrimSpace(code))
	if err != nil {
		return strings.TrimSpace(code)
	}
	if e, ok := byCode[Base(tag.String())]; ok {
		return e.display
	}
	return tag.String()
}

// Lower lowercases text using the casing rules of the book's language.
func Lower(code, text string) string {
	tag, err := xlanguage.Parse(strings.TrimSpace(code))
	if err != nil {
		tag = xlanguage.Und
	}
	return cases.Lower(tag).String(text)
}

// Title title-cases text using the casing rules of the book's language.
func Title(code, text string) string {
	tag, err := xlanguage.Parse(strings.TrimSpace(code))
	if err != nil {
		tag = xlanguage.Und
	}
	return cases.Title(tag, cases.NoLower).String(text)
}
