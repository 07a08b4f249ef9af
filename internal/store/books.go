package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"bookforge/internal/services"
)

const (
	defaultLanguage    = "fr"
	defaultTargetPages = 100
	// DefaultListLimit caps ListBooks when the caller passes no limit.
	DefaultListLimit = 100
)

const bookColumns = "id, title, subtitle, description, category, language, target_pages, image_policy, status, approved, generation, error_message, failed_chapter, created_at, updated_at"

func scanBook(scanner interface{ Scan(dest ...any) error }) (*Book, error) {
	var (
		book       Book
		policy     string
		status     string
		approved   int
		generation string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&book.ID,
		&book.Title,
		&book.Subtitle,
		&book.Description,
		&book.Category,
		&book.Language,
		&book.TargetPages,
		&policy,
		&status,
		&approved,
		&generation,
		&book.Error,
		&book.FailedChapter,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	book.ImagePolicy = ImagePolicy(policy)
	book.Status = Status(status)
	book.Approved = approved != 0
	book.Generation = Generation(generation)
	if created, err := parseTimeString(createdRaw); err == nil {
		book.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		book.UpdatedAt = updated
	}
	return &book, nil
}

func notFound(operation, id string) error {
	return services.Wrap(services.ErrNotFound, "store", operation, fmt.Sprintf("book %s not found", id), nil)
}

// CreateBook inserts a new book with a fresh id and status outline_pending.
func (s *Store) CreateBook(ctx context.Context, input NewBook) (*Book, error) {
	now := s.timestamp()
	book := &Book{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Subtitle:    strings.TrimSpace(input.Subtitle),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Language:    strings.TrimSpace(input.Language),
		TargetPages: input.TargetPages,
		ImagePolicy: input.ImagePolicy,
		Generation:  GenerationIdle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if book.Language == "" {
		book.Language = defaultLanguage
	}
	if book.TargetPages == 0 {
		book.TargetPages = defaultTargetPages
	}
	if book.ImagePolicy == "" {
		book.ImagePolicy = ImagePolicyAI
	}
	if err := validateBook(book); err != nil {
		return nil, err
	}
	book.Status = DeriveStatus(book)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO books (`+bookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			book.ID, book.Title, book.Subtitle, book.Description, book.Category, book.Language,
			book.TargetPages, string(book.ImagePolicy), string(book.Status), boolToInt(book.Approved),
			string(book.Generation), book.Error, book.FailedChapter, formatTime(book.CreatedAt), formatTime(book.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return book, nil
}

// GetBook loads the full aggregate, including chapter content.
func (s *Store) GetBook(ctx context.Context, id string) (*Book, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return loadBook(ctx, tx, id)
}

func loadBook(ctx context.Context, q querier, id string) (*Book, error) {
	book, err := scanBook(q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("get", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load book %s: %w", id, err)
	}
	if book.Outline, err = loadOutline(ctx, q, id); err != nil {
		return nil, err
	}
	if book.Chapters, err = loadChapters(ctx, q, id); err != nil {
		return nil, err
	}
	return book, nil
}

func loadOutline(ctx context.Context, q querier, id string) ([]OutlineEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT chapter_number, title, summary, key_points, estimated_pages, image_suggestion
		 FROM outline_entries WHERE book_id = ? ORDER BY chapter_number`, id)
	if err != nil {
		return nil, fmt.Errorf("load outline: %w", err)
	}
	defer rows.Close()

	var outline []OutlineEntry
	for rows.Next() {
		var (
			entry     OutlineEntry
			keyPoints string
		)
		if err := rows.Scan(&entry.Number, &entry.Title, &entry.Summary, &keyPoints, &entry.EstimatedPages, &entry.ImageSuggestion); err != nil {
			return nil, fmt.Errorf("scan outline entry: %w", err)
		}
		if keyPoints != "" {
			if err := json.Unmarshal([]byte(keyPoints), &entry.KeyPoints); err != nil {
				return nil, fmt.Errorf("decode key points for chapter %d: %w", entry.Number, err)
			}
		}
		outline = append(outline, entry)
	}
	return outline, rows.Err()
}

func loadChapters(ctx context.Context, q querier, id string) ([]Chapter, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT chapter_number, title, content, image_url, generated_at
		 FROM chapters WHERE book_id = ? ORDER BY chapter_number`, id)
	if err != nil {
		return nil, fmt.Errorf("load chapters: %w", err)
	}
	defer rows.Close()

	var chapters []Chapter
	for rows.Next() {
		var (
			ch           Chapter
			generatedRaw string
		)
		if err := rows.Scan(&ch.Number, &ch.Title, &ch.Content, &ch.ImageURL, &generatedRaw); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		if generated, err := parseTimeString(generatedRaw); err == nil {
			ch.GeneratedAt = generated
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// Update loads the book, applies fn and persists the result in one
// transaction. Status and updated_at are recomputed; fn must not change the id.
// Returning an error from fn aborts without writing.
func (s *Store) Update(ctx context.Context, id string, fn func(*Book) error) (*Book, error) {
	var updated *Book
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		before, err := loadBook(ctx, tx, id)
		if err != nil {
			return err
		}
		after, err := loadBook(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(after); err != nil {
			return err
		}
		if after.ID != before.ID {
			return services.Wrap(services.ErrValidation, "store", "update", "book id is immutable", nil)
		}
		if err := validateBook(after); err != nil {
			return err
		}
		after.Status = DeriveStatus(after)
		after.CreatedAt = before.CreatedAt
		after.UpdatedAt = s.timestamp()
		if err := writeBook(ctx, tx, before, after); err != nil {
			return err
		}
		updated = after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func writeBook(ctx context.Context, tx *sql.Tx, before, after *Book) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE books SET title = ?, subtitle = ?, description = ?, category = ?, language = ?,
		 target_pages = ?, image_policy = ?, status = ?, approved = ?, generation = ?,
		 error_message = ?, failed_chapter = ?, updated_at = ? WHERE id = ?`,
		after.Title, after.Subtitle, after.Description, after.Category, after.Language,
		after.TargetPages, string(after.ImagePolicy), string(after.Status), boolToInt(after.Approved),
		string(after.Generation), after.Error, after.FailedChapter, formatTime(after.UpdatedAt), after.ID,
	); err != nil {
		return fmt.Errorf("update book: %w", err)
	}

	if !outlineEqual(before.Outline, after.Outline) {
		if err := writeOutline(ctx, tx, after.ID, after.Outline); err != nil {
			return err
		}
	}

	previous := make(map[int]Chapter, len(before.Chapters))
	for _, ch := range before.Chapters {
		previous[ch.Number] = ch
	}
	for _, ch := range after.Chapters {
		old, existed := previous[ch.Number]
		delete(previous, ch.Number)
		if existed && old.Title == ch.Title && old.Content == ch.Content &&
			old.ImageURL == ch.ImageURL && old.GeneratedAt.Equal(ch.GeneratedAt) {
			continue
		}
		if err := upsertChapter(ctx, tx, after.ID, ch); err != nil {
			return err
		}
		if ch.ImageURL == "" {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM images WHERE book_id = ? AND chapter_number = ?`, after.ID, ch.Number); err != nil {
				return fmt.Errorf("drop image for chapter %d: %w", ch.Number, err)
			}
		}
	}
	for number := range previous {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chapters WHERE book_id = ? AND chapter_number = ?`, after.ID, number); err != nil {
			return fmt.Errorf("delete chapter %d: %w", number, err)
		}
	}
	return nil
}

func writeOutline(ctx context.Context, tx *sql.Tx, bookID string, outline []OutlineEntry) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM outline_entries WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("clear outline: %w", err)
	}
	for _, entry := range outline {
		keyPoints := entry.KeyPoints
		if keyPoints == nil {
			keyPoints = []string{}
		}
		encoded, err := json.Marshal(keyPoints)
		if err != nil {
			return fmt.Errorf("encode key points: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outline_entries (book_id, chapter_number, title, summary, key_points, estimated_pages, image_suggestion)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			bookID, entry.Number, entry.Title, entry.Summary, string(encoded), entry.EstimatedPages, entry.ImageSuggestion,
		); err != nil {
			return fmt.Errorf("insert outline entry %d: %w", entry.Number, err)
		}
	}
	return nil
}

func upsertChapter(ctx context.Context, tx *sql.Tx, bookID string, ch Chapter) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO chapters (book_id, chapter_number, title, content, image_url, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(book_id, chapter_number) DO UPDATE SET
		   title = excluded.title,
		   content = excluded.content,
		   image_url = excluded.image_url,
		   generated_at = excluded.generated_at`,
		bookID, ch.Number, ch.Title, ch.Content, ch.ImageURL, formatTime(ch.GeneratedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert chapter %d: %w", ch.Number, err)
	}
	return nil
}

func outlineEqual(a, b []OutlineEntry) bool {
	return slices.EqualFunc(a, b, func(x, y OutlineEntry) bool {
		return x.Number == y.Number &&
			x.Title == y.Title &&
			x.Summary == y.Summary &&
			x.EstimatedPages == y.EstimatedPages &&
			x.ImageSuggestion == y.ImageSuggestion &&
			slices.Equal(x.KeyPoints, y.KeyPoints)
	})
}

// Summary is a listing row: book header plus chapter counts.
type Summary struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Subtitle          string      `json:"subtitle,omitempty"`
	Category          string      `json:"category,omitempty"`
	Language          string      `json:"language"`
	TargetPages       int         `json:"target_pages"`
	ImagePolicy       ImagePolicy `json:"image_source"`
	Status            Status      `json:"status"`
	Generation        Generation  `json:"generation"`
	TotalChapters     int         `json:"total_chapters"`
	GeneratedChapters int         `json:"generated_chapters"`
	Error             string      `json:"error,omitempty"`
	CreatedAt         string      `json:"created_at"`
	UpdatedAt         string      `json:"updated_at"`
}

// ListBooks returns books newest first. A non-positive limit uses DefaultListLimit.
func (s *Store) ListBooks(ctx context.Context, limit int) ([]Summary, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.title, b.subtitle, b.category, b.language, b.target_pages, b.image_policy,
		        b.status, b.generation, b.error_message, b.created_at, b.updated_at,
		        (SELECT COUNT(1) FROM outline_entries o WHERE o.book_id = b.id),
		        (SELECT COUNT(1) FROM chapters c WHERE c.book_id = b.id AND length(c.content) > 0)
		 FROM books b ORDER BY b.created_at DESC, b.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []Summary
	for rows.Next() {
		var (
			summary    Summary
			policy     string
			status     string
			generation string
		)
		if err := rows.Scan(
			&summary.ID, &summary.Title, &summary.Subtitle, &summary.Category, &summary.Language,
			&summary.TargetPages, &policy, &status, &generation, &summary.Error,
			&summary.CreatedAt, &summary.UpdatedAt, &summary.TotalChapters, &summary.GeneratedChapters,
		); err != nil {
			return nil, fmt.Errorf("scan book summary: %w", err)
		}
		summary.ImagePolicy = ImagePolicy(policy)
		summary.Status = Status(status)
		summary.Generation = Generation(generation)
		books = append(books, summary)
	}
	return books, rows.Err()
}

// DeleteBook removes the book and, by cascade, its outline, chapters and images.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		if affected == 0 {
			return notFound("delete", id)
		}
		return nil
	})
}

// BooksWithGeneration returns ids of books in any of the given generation
// states, least recently updated first.
func (s *Store) BooksWithGeneration(ctx context.Context, states ...Generation) ([]string, error) {
	ctx = ensureContext(ctx)
	if len(states) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(states)), ",")
	args := make([]any, len(states))
	for i, state := range states {
		args[i] = string(state)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM books WHERE generation IN (`+placeholders+`) ORDER BY updated_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("query generation states: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RequeueInterrupted moves books left in the running state (for example by a
// crash) back to queued so the generation lane resumes them.
func (s *Store) RequeueInterrupted(ctx context.Context) (int, error) {
	ids, err := s.BooksWithGeneration(ctx, GenerationRunning)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if _, err := s.Update(ctx, id, func(b *Book) error {
			b.Generation = GenerationQueued
			return nil
		}); err != nil && !errors.Is(err, services.ErrNotFound) {
			return 0, err
		}
	}
	return len(ids), nil
}
