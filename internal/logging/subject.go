package logging

import "strings"

// FormatSubject builds the book/chapter subject string used in console output.
// Book identifiers are shortened to their first eight characters.
func FormatSubject(bookID, chapter string) string {
	bookID = strings.TrimSpace(bookID)
	chapter = strings.TrimSpace(chapter)
	if len(bookID) > 8 {
		bookID = bookID[:8]
	}
	parts := make([]string, 0, 2)
	if bookID != "" {
		parts = append(parts, "Book "+bookID)
	}
	if chapter != "" && chapter != "0" {
		parts = append(parts, "Chapter "+chapter)
	}
	return strings.Join(parts, " · ")
}
