package store

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"bookforge/internal/services"
)

// Status is the derived lifecycle state of a book.
type Status string

const (
	StatusOutlinePending   Status = "outline_pending"
	StatusOutlineReady     Status = "outline_ready"
	StatusOutlineApproved  Status = "outline_approved"
	StatusWriting          Status = "writing"
	StatusChaptersComplete Status = "chapters_complete"
	StatusError            Status = "error"
)

var allStatuses = []Status{
	StatusOutlinePending,
	StatusOutlineReady,
	StatusOutlineApproved,
	StatusWriting,
	StatusChaptersComplete,
	StatusError,
}

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	return status, slices.Contains(allStatuses, status)
}

// ImagePolicy selects where chapter illustrations come from.
type ImagePolicy string

const (
	ImagePolicyAI    ImagePolicy = "ai"
	ImagePolicyStock ImagePolicy = "stock"
	ImagePolicyBoth  ImagePolicy = "both"
)

// Valid reports whether p is a known policy.
func (p ImagePolicy) Valid() bool {
	switch p {
	case ImagePolicyAI, ImagePolicyStock, ImagePolicyBoth:
		return true
	}
	return false
}

// ImageSource records which provider produced a stored image.
type ImageSource string

const (
	ImageSourceAI          ImageSource = "ai"
	ImageSourceStock       ImageSource = "stock"
	ImageSourcePlaceholder ImageSource = "placeholder"
)

// Generation tracks background chapter generation for a book.
type Generation string

const (
	GenerationIdle    Generation = "idle"
	GenerationQueued  Generation = "queued"
	GenerationRunning Generation = "running"
)

// Pending reports whether generation is queued or running.
func (g Generation) Pending() bool {
	return g == GenerationQueued || g == GenerationRunning
}

// OutlineEntry describes one planned chapter.
type OutlineEntry struct {
	Number          int      `json:"chapter_number"`
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	EstimatedPages  int      `json:"estimated_pages"`
	ImageSuggestion string   `json:"image_suggestion,omitempty"`
}

// Chapter is generated chapter text plus its optional illustration reference.
type Chapter struct {
	Number      int       `json:"chapter_number"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ImageURL    string    `json:"image_url,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Image is a stored chapter illustration.
type Image struct {
	BookID      string
	Chapter     int
	Data        []byte
	ContentType string
	Source      ImageSource
	CreatedAt   time.Time
}

// Book is the aggregate persisted by the store. Status is derived on every write.
type Book struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Subtitle      string         `json:"subtitle,omitempty"`
	Description   string         `json:"description,omitempty"`
	Category      string         `json:"category,omitempty"`
	Language      string         `json:"language"`
	TargetPages   int            `json:"target_pages"`
	ImagePolicy   ImagePolicy    `json:"image_source"`
	Status        Status         `json:"status"`
	Outline       []OutlineEntry `json:"outline"`
	Chapters      []Chapter      `json:"chapters"`
	Approved      bool           `json:"outline_approved"`
	Generation    Generation     `json:"generation"`
	Error         string         `json:"error,omitempty"`
	FailedChapter int            `json:"failed_chapter,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewBook holds the caller-supplied fields for CreateBook.
type NewBook struct {
	Title       string
	Subtitle    string
	Description string
	Category    string
	Language    string
	TargetPages int
	ImagePolicy ImagePolicy
}

// Chapter returns chapter n if it has been generated.
func (b *Book) Chapter(n int) (*Chapter, bool) {
	for i := range b.Chapters {
		if b.Chapters[i].Number == n {
			return &b.Chapters[i], true
		}
	}
	return nil, false
}

// OutlineEntry returns the outline entry for chapter n.
func (b *Book) OutlineEntry(n int) (*OutlineEntry, bool) {
	if n < 1 || n > len(b.Outline) {
		return nil, false
	}
	entry := &b.Outline[n-1]
	if entry.Number != n {
		return nil, false
	}
	return entry, true
}

// GeneratedCount returns the number of chapters with content.
func (b *Book) GeneratedCount() int {
	count := 0
	for _, ch := range b.Chapters {
		if strings.TrimSpace(ch.Content) != "" {
			count++
		}
	}
	return count
}

// MissingChapters lists outline chapter numbers without content, ascending.
func (b *Book) MissingChapters() []int {
	var missing []int
	for _, entry := range b.Outline {
		if ch, ok := b.Chapter(entry.Number); !ok || strings.TrimSpace(ch.Content) == "" {
			missing = append(missing, entry.Number)
		}
	}
	return missing
}

// PutChapter inserts or replaces a chapter, keeping Chapters ordered by number.
func (b *Book) PutChapter(ch Chapter) {
	if existing, ok := b.Chapter(ch.Number); ok {
		*existing = ch
		return
	}
	b.Chapters = append(b.Chapters, ch)
	slices.SortFunc(b.Chapters, func(a, c Chapter) int { return a.Number - c.Number })
}

// SetError records an unrecoverable failure; chapter 0 means the failure was not
// tied to a single chapter.
func (b *Book) SetError(message string, chapter int) {
	b.Error = strings.TrimSpace(message)
	if b.Error == "" {
		b.Error = "unknown failure"
	}
	b.FailedChapter = chapter
}

// ClearError removes a recorded failure.
func (b *Book) ClearError() {
	b.Error = ""
	b.FailedChapter = 0
}

// DeriveStatus computes the lifecycle state from book facts. Priority: a
// recorded error, then outline presence, completion, writing activity and
// approval.
func DeriveStatus(b *Book) Status {
	switch {
	case b.Error != "":
		return StatusError
	case len(b.Outline) == 0:
		return StatusOutlinePending
	case b.GeneratedCount() == len(b.Outline) && !b.Generation.Pending():
		return StatusChaptersComplete
	case b.GeneratedCount() > 0 || b.Generation == GenerationRunning:
		return StatusWriting
	case b.Approved:
		return StatusOutlineApproved
	default:
		return StatusOutlineReady
	}
}

// ValidateOutline checks that chapter numbers are exactly 1..N with titles.
func ValidateOutline(outline []OutlineEntry) error {
	for i, entry := range outline {
		if entry.Number != i+1 {
			return services.Wrap(services.ErrValidation, "store", "outline",
				fmt.Sprintf("chapter numbers must be 1..%d in order; position %d has %d", len(outline), i+1, entry.Number), nil)
		}
		if strings.TrimSpace(entry.Title) == "" {
			return services.Wrap(services.ErrValidation, "store", "outline", fmt.Sprintf("chapter %d has no title", entry.Number), nil)
		}
		if entry.EstimatedPages < 0 {
			return services.Wrap(services.ErrValidation, "store", "outline", fmt.Sprintf("chapter %d has negative page estimate", entry.Number), nil)
		}
	}
	return nil
}

func validateBook(b *Book) error {
	if strings.TrimSpace(b.Title) == "" {
		return services.Wrap(services.ErrValidation, "store", "book", "title required", nil)
	}
	if !b.ImagePolicy.Valid() {
		return services.Wrap(services.ErrValidation, "store", "book", fmt.Sprintf("unknown image source %q", b.ImagePolicy), nil)
	}
	if b.TargetPages <= 0 {
		return services.Wrap(services.ErrValidation, "store", "book", "target pages must be positive", nil)
	}
	if err := ValidateOutline(b.Outline); err != nil {
		return err
	}
	seen := make(map[int]struct{}, len(b.Chapters))
	for _, ch := range b.Chapters {
		if _, ok := b.OutlineEntry(ch.Number); !ok {
			return services.Wrap(services.ErrValidation, "store", "book", fmt.Sprintf("chapter %d is not in the outline", ch.Number), nil)
		}
		if _, dup := seen[ch.Number]; dup {
			return services.Wrap(services.ErrValidation, "store", "book", fmt.Sprintf("chapter %d appears twice", ch.Number), nil)
		}
		seen[ch.Number] = struct{}{}
	}
	if b.FailedChapter < 0 {
		return services.Wrap(services.ErrValidation, "store", "book", "failed chapter must not be negative", nil)
	}
	return nil
}

// ImageURL is the API path serving a chapter's stored image.
func ImageURL(bookID string, chapter int) string {
	return fmt.Sprintf("/api/books/%s/chapters/%d/image", bookID, chapter)
}
