package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookforge/internal/services"
)

// PutImage stores or replaces the illustration for a generated chapter and
// points the chapter's image_url at it, in one transaction.
func (s *Store) PutImage(ctx context.Context, img Image) (*Book, error) {
	if len(img.Data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "put image", "image payload is empty", nil)
	}
	var updated *Book
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		book, err := loadBook(ctx, tx, img.BookID)
		if err != nil {
			return err
		}
		ch, ok := book.Chapter(img.Chapter)
		if !ok {
			return services.Wrap(services.ErrNotFound, "store", "put image",
				fmt.Sprintf("chapter %d of book %s not generated", img.Chapter, img.BookID), nil)
		}
		now := s.timestamp()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO images (book_id, chapter_number, content_type, source, data, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(book_id, chapter_number) DO UPDATE SET
			   content_type = excluded.content_type,
			   source = excluded.source,
			   data = excluded.data,
			   created_at = excluded.created_at`,
			img.BookID, img.Chapter, img.ContentType, string(img.Source), img.Data, formatTime(now),
		); err != nil {
			return fmt.Errorf("store image: %w", err)
		}
		ch.ImageURL = ImageURL(img.BookID, img.Chapter)
		if _, err := tx.ExecContext(ctx,
			`UPDATE chapters SET image_url = ? WHERE book_id = ? AND chapter_number = ?`,
			ch.ImageURL, img.BookID, img.Chapter,
		); err != nil {
			return fmt.Errorf("link image: %w", err)
		}
		if err := touchBook(ctx, tx, book, now); err != nil {
			return err
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetImage returns the stored illustration for a chapter.
func (s *Store) GetImage(ctx context.Context, bookID string, chapter int) (*Image, error) {
	ctx = ensureContext(ctx)
	img := &Image{BookID: bookID, Chapter: chapter}
	var (
		source     string
		createdRaw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT content_type, source, data, created_at FROM images WHERE book_id = ? AND chapter_number = ?`,
		bookID, chapter,
	).Scan(&img.ContentType, &source, &img.Data, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get image",
			fmt.Sprintf("no image for chapter %d of book %s", chapter, bookID), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	img.Source = ImageSource(source)
	if created, err := parseTimeString(createdRaw); err == nil {
		img.CreatedAt = created
	}
	return img, nil
}

// DeleteImage frees a chapter's image bytes and clears its image_url.
func (s *Store) DeleteImage(ctx context.Context, bookID string, chapter int) (*Book, error) {
	var updated *Book
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		book, err := loadBook(ctx, tx, bookID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM images WHERE book_id = ? AND chapter_number = ?`, bookID, chapter)
		if err != nil {
			return fmt.Errorf("delete image: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete image: %w", err)
		}
		ch, ok := book.Chapter(chapter)
		if affected == 0 && (!ok || ch.ImageURL == "") {
			return services.Wrap(services.ErrNotFound, "store", "delete image",
				fmt.Sprintf("no image for chapter %d of book %s", chapter, bookID), nil)
		}
		if ok {
			ch.ImageURL = ""
			if _, err := tx.ExecContext(ctx,
				`UPDATE chapters SET image_url = '' WHERE book_id = ? AND chapter_number = ?`, bookID, chapter,
			); err != nil {
				return fmt.Errorf("unlink image: %w", err)
			}
		}
		if err := touchBook(ctx, tx, book, s.timestamp()); err != nil {
			return err
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// touchBook bumps updated_at so export caches keyed on it are invalidated.
func touchBook(ctx context.Context, tx *sql.Tx, book *Book, now time.Time) error {
	book.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, `UPDATE books SET updated_at = ? WHERE id = ?`, formatTime(now), book.ID); err != nil {
		return fmt.Errorf("touch book: %w", err)
	}
	return nil
}
