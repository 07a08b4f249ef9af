package export

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookforge/internal/language"
	"bookforge/internal/markdown"
	"bookforge/internal/services"
	"bookforge/internal/store"
)

// Manuscript is the format-neutral view of a book every renderer consumes.
type Manuscript struct {
	ID          string
	Title       string
	Subtitle    string
	Description string
	Category    string
	Language    string
	Labels      language.Labels
	UpdatedAt   time.Time
	Chapters    []ManuscriptChapter
}

// ManuscriptChapter is one generated chapter parsed into blocks.
type ManuscriptChapter struct {
	Number    int
	Heading   string
	Title     string
	TitleRuns []markdown.Run
	Body      markdown.Document
	Image     *ChapterImage
}

// ChapterImage is an illustration placed under the chapter title.
type ChapterImage struct {
	Data        []byte
	ContentType string
}

// Label returns "Chapter 3: Title" in the book's language.
func (c ManuscriptChapter) Label() string {
	if c.Title == "" {
		return c.Heading
	}
	return c.Heading + ": " + c.Title
}

// Extension returns the file extension for the image content type.
func (img *ChapterImage) Extension() string {
	switch img.ContentType {
	case "image/jpeg":
		return "jpeg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

// NewManuscript builds a manuscript from a book and pre-loaded images keyed by
// chapter number.
func NewManuscript(book *store.Book, images map[int]*store.Image) *Manuscript {
	m := &Manuscript{
		ID:          book.ID,
		Title:       markdown.Plain(book.Title),
		Subtitle:    markdown.Plain(book.Subtitle),
		Description: strings.TrimSpace(book.Description),
		Category:    book.Category,
		Language:    book.Language,
		Labels:      language.LabelsFor(book.Language),
		UpdatedAt:   book.UpdatedAt,
	}
	for _, ch := range book.Chapters {
		mc := ManuscriptChapter{
			Number:    ch.Number,
			Heading:   language.ChapterHeading(book.Language, ch.Number),
			Title:     markdown.Plain(ch.Title),
			TitleRuns: markdown.ParseInline(ch.Title),
			Body:      markdown.Parse(ch.Content),
		}
		if img, ok := images[ch.Number]; ok && img != nil && len(img.Data) > 0 {
			mc.Image = &ChapterImage{Data: img.Data, ContentType: img.ContentType}
		}
		m.Chapters = append(m.Chapters, mc)
	}
	return m
}

func newManuscript(ctx context.Context, source BookSource, book *store.Book) (*Manuscript, error) {
	images := make(map[int]*store.Image)
	for _, ch := range book.Chapters {
		if ch.ImageURL == "" {
			continue
		}
		img, err := source.GetImage(ctx, book.ID, ch.Number)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			return nil, err
		}
		images[ch.Number] = img
	}
	return NewManuscript(book, images), nil
}
