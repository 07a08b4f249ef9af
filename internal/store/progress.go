package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ChapterProgress is one outline entry's generation state.
type ChapterProgress struct {
	Number    int    `json:"chapter_number"`
	Title     string `json:"title"`
	Generated bool   `json:"generated"`
	HasImage  bool   `json:"has_image"`
}

// Progress is a lightweight view of a book's generation state.
type Progress struct {
	BookID            string            `json:"book_id"`
	Title             string            `json:"title"`
	Status            Status            `json:"status"`
	Generation        Generation        `json:"generation"`
	GeneratedChapters int               `json:"generated_chapters"`
	TotalChapters     int               `json:"total_chapters"`
	Chapters          []ChapterProgress `json:"chapters"`
	Error             string            `json:"error,omitempty"`
	FailedChapter     int               `json:"failed_chapter,omitempty"`
	UpdatedAt         string            `json:"updated_at"`
}

// Progress reads generation progress without loading chapter content. It
// never takes the write lock.
func (s *Store) Progress(ctx context.Context, id string) (*Progress, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p := &Progress{BookID: id}
	var status, generation string
	err = tx.QueryRowContext(ctx,
		`SELECT title, status, generation, error_message, failed_chapter, updated_at FROM books WHERE id = ?`, id,
	).Scan(&p.Title, &status, &generation, &p.Error, &p.FailedChapter, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("progress", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	p.Status = Status(status)
	p.Generation = Generation(generation)

	rows, err := tx.QueryContext(ctx,
		`SELECT o.chapter_number, o.title,
		        CASE WHEN c.chapter_number IS NOT NULL AND length(c.content) > 0 THEN 1 ELSE 0 END,
		        CASE WHEN c.image_url IS NOT NULL AND c.image_url <> '' THEN 1 ELSE 0 END
		 FROM outline_entries o
		 LEFT JOIN chapters c ON c.book_id = o.book_id AND c.chapter_number = o.chapter_number
		 WHERE o.book_id = ? ORDER BY o.chapter_number`, id)
	if err != nil {
		return nil, fmt.Errorf("load chapter progress: %w", err)
	}
	defer rows.Close()

	p.Chapters = []ChapterProgress{}
	for rows.Next() {
		var (
			cp                  ChapterProgress
			generated, hasImage int
		)
		if err := rows.Scan(&cp.Number, &cp.Title, &generated, &hasImage); err != nil {
			return nil, fmt.Errorf("scan chapter progress: %w", err)
		}
		cp.Generated = generated == 1
		cp.HasImage = hasImage == 1
		if cp.Generated {
			p.GeneratedChapters++
		}
		p.Chapters = append(p.Chapters, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	p.TotalChapters = len(p.Chapters)
	return p, nil
}
