package workflow

import (
	"fmt"
	"sort"
	"strings"

	"bookforge/internal/language"
	"bookforge/internal/markdown"
	"bookforge/internal/services"
	"bookforge/internal/services/llm"
	"bookforge/internal/store"
	"bookforge/internal/textutil"
)

const (
	pagesPerChapter       = 6
	defaultChapterPages   = 5
	previousExcerptRunes  = 600
	defaultBookCategory   = "non-fiction"
	outlineSystemTemplate = "You are a professional book author writing in %s. Always respond with valid JSON only."
	chapterSystemTemplate = "You are writing a professional %s book in %s."
)

// ChapterCount returns how many chapters to plan for a page target.
func ChapterCount(targetPages, minChapters int) int {
	return max(minChapters, targetPages/pagesPerChapter, 1)
}

// WordBudget returns the word target for a chapter of estimatedPages.
func WordBudget(estimatedPages, wordsPerPage int) int {
	if estimatedPages <= 0 {
		estimatedPages = defaultChapterPages
	}
	return estimatedPages * wordsPerPage
}

func outlinePrompt(book *store.Book, chapters int) services.Prompt {
	lang := language.DisplayName(book.Language)
	var sb strings.Builder
	sb.WriteString("You are a professional author. Create a detailed outline for this book:\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", book.Title)
	if book.Subtitle != "" {
		fmt.Fprintf(&sb, "Subtitle: %s\n", book.Subtitle)
	}
	if book.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", book.Description)
	}
	fmt.Fprintf(&sb, "Category: %s\n", categoryOrDefault(book.Category))
	fmt.Fprintf(&sb, "Target pages: %d\n\n", book.TargetPages)
	fmt.Fprintf(&sb, "Create exactly %d chapters. For each chapter provide:\n", chapters)
	sb.WriteString("- \"chapter_number\": chapter number\n")
	sb.WriteString("- \"title\": chapter title\n")
	sb.WriteString("- \"summary\": content summary (2-3 sentences)\n")
	sb.WriteString("- \"key_points\": list of 3-5 key points to cover\n")
	sb.WriteString("- \"estimated_pages\": estimated pages for this chapter\n")
	sb.WriteString("- \"image_suggestion\": image suggestion to illustrate this chapter\n\n")
	fmt.Fprintf(&sb, "Make sure total estimated pages is around %d.\n", book.TargetPages)
	fmt.Fprintf(&sb, "Write titles, summaries and key points in %s.\n", lang)
	sb.WriteString(`Respond ONLY with JSON. Format: [{"chapter_number": 1, "title": "...", ...}]`)
	return services.Prompt{
		System:   fmt.Sprintf(outlineSystemTemplate, lang),
		User:     sb.String(),
		Language: book.Language,
	}
}

func chapterPrompt(book *store.Book, entry *store.OutlineEntry, previous string, words int) services.Prompt {
	lang := language.DisplayName(book.Language)
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a professional author writing chapter %d of the book %q.\n\n", entry.Number, book.Title)
	fmt.Fprintf(&sb, "Chapter title: %s\n", entry.Title)
	if entry.Summary != "" {
		fmt.Fprintf(&sb, "Chapter summary: %s\n", entry.Summary)
	}
	if len(entry.KeyPoints) > 0 {
		sb.WriteString("Key points to cover:\n")
		for _, point := range entry.KeyPoints {
			fmt.Fprintf(&sb, "- %s\n", point)
		}
	}
	if previous != "" {
		fmt.Fprintf(&sb, "\nThe previous chapter ended with:\n%s\n", previous)
	}
	fmt.Fprintf(&sb, "\nWrite approximately %d words in %s. ", words, lang)
	sb.WriteString("Use ## for subsections and ### for smaller headings. ")
	sb.WriteString("Include practical examples and keep a professional, engaging tone.\n")
	sb.WriteString("Write ONLY the chapter content, without repeating the chapter title.")
	return services.Prompt{
		System:   fmt.Sprintf(chapterSystemTemplate, categoryOrDefault(book.Category), lang),
		User:     sb.String(),
		Language: book.Language,
	}
}

// previousExcerpt returns the tail of chapter n-1 as plain text, if it exists.
func previousExcerpt(book *store.Book, n int) string {
	prev, ok := book.Chapter(n - 1)
	if !ok {
		return ""
	}
	return textutil.Excerpt(markdown.PlainText(prev.Content), previousExcerptRunes)
}

func categoryOrDefault(category string) string {
	if c := strings.TrimSpace(category); c != "" {
		return c
	}
	return defaultBookCategory
}

type outlineItem struct {
	Number          int      `json:"chapter_number"`
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	EstimatedPages  int      `json:"estimated_pages"`
	ImageSuggestion string   `json:"image_suggestion"`
}

// parseOutline decodes a model outline. Both a bare array and an object with a
// "chapters" array are accepted. Chapters are ordered by their stated number
// and renumbered 1..N.
func parseOutline(content string) ([]store.OutlineEntry, error) {
	var items []outlineItem
	if err := llm.DecodeJSON(content, &items); err != nil {
		var wrapped struct {
			Chapters []outlineItem `json:"chapters"`
		}
		if wrappedErr := llm.DecodeJSON(content, &wrapped); wrappedErr != nil {
			return nil, services.Wrap(services.ErrEmptyResult, "workflow", "outline", "response is not an outline", err)
		}
		items = wrapped.Chapters
	}
	if len(items) == 0 {
		return nil, services.Wrap(services.ErrEmptyResult, "workflow", "outline", "response contains no chapters", nil)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Number < items[j].Number
	})
	outline := make([]store.OutlineEntry, 0, len(items))
	for i, item := range items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			return nil, services.Wrap(services.ErrEmptyResult, "workflow", "outline",
				fmt.Sprintf("chapter %d has no title", i+1), nil)
		}
		points := make([]string, 0, len(item.KeyPoints))
		for _, point := range item.KeyPoints {
			if point = strings.TrimSpace(point); point != "" {
				points = append(points, point)
			}
		}
		outline = append(outline, store.OutlineEntry{
			Number:          i + 1,
			Title:           title,
			Summary:         strings.TrimSpace(item.Summary),
			KeyPoints:       points,
			EstimatedPages:  max(item.EstimatedPages, 0),
			ImageSuggestion: strings.TrimSpace(item.ImageSuggestion),
		})
	}
	return outline, nil
}

// cleanChapter strips a wrapping code fence and a repeated leading title
// heading from generated chapter text.
func cleanChapter(content, title string) string {
	body := llm.StripCodeFence(content)
	lines := strings.SplitN(body, "\n", 2)
	if len(lines) > 0 {
		first := strings.TrimSpace(lines[0])
		if strings.HasPrefix(first, "# ") && strings.EqualFold(markdown.Plain(strings.TrimSpace(first[2:])), markdown.Plain(title)) {
			if len(lines) == 2 {
				body = lines[1]
			} else {
				body = ""
			}
		}
	}
	return strings.TrimSpace(body)
}
