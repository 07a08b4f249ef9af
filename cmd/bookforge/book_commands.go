package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookforge/internal/api"
	"bookforge/internal/daemonrun"
	"bookforge/internal/language"
	"bookforge/internal/store"
	"bookforge/internal/textutil"
)

func newBookCommand(ctx *commandContext) *cobra.Command {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Create, list, inspect and delete books",
	}
	bookCmd.AddCommand(newBookCreateCommand(ctx))
	bookCmd.AddCommand(newBookListCommand(ctx))
	bookCmd.AddCommand(newBookShowCommand(ctx))
	bookCmd.AddCommand(newBookDeleteCommand(ctx))
	return bookCmd
}

func newBookCreateCommand(ctx *commandContext) *cobra.Command {
	var req api.CreateBookRequest

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a book awaiting its outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = args[0]
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				book, err := rt.Workflow.CreateBook(cmd.Context(), req.NewBook())
				if err != nil {
					return err
				}
				return emit(cmd, ctx, book, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Created book %s (%s)\n", book.ID, book.Title)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&req.Subtitle, "subtitle", "", "Subtitle")
	cmd.Flags().StringVar(&req.Description, "description", "", "Short description used to steer the outline")
	cmd.Flags().StringVar(&req.Category, "category", "", "Category, such as self-help or history")
	cmd.Flags().StringVar(&req.Language, "language", language.Default, "Language code (fr, en, es, de, it, pt, ...)")
	cmd.Flags().IntVar(&req.TargetPages, "pages", 0, "Target page count")
	cmd.Flags().StringVar(&req.ImageSource, "images", "ai", "Image source policy: ai, stock or both")
	return cmd
}

func newBookListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			books, err := st.ListBooks(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return emit(cmd, ctx, api.BookListResponse{Books: books}, func() error {
				out := cmd.OutOrStdout()
				if len(books) == 0 {
					fmt.Fprintln(out, "No books yet")
					return nil
				}
				rows := make([][]string, 0, len(books))
				for _, b := range books {
					rows = append(rows, []string{
						b.ID,
						b.Title,
						language.DisplayName(b.Language),
						string(b.Status),
						fmt.Sprintf("%d/%d", b.GeneratedChapters, b.TotalChapters),
						b.UpdatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(bookListColumns, rows, bookCountLabel(len(books))))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of books (default 100)")
	return cmd
}

func newBookShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a book's outline and chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			book, err := st.GetBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emit(cmd, ctx, book, func() error {
				printBook(cmd, book)
				return nil
			})
		},
	}
}

func printBook(cmd *cobra.Command, book *store.Book) {
	out := cmd.OutOrStdout()
	p := newStatusPrinter(out)

	p.header(book.Title)
	p.field("Subtitle", book.Subtitle)
	p.field("ID", book.ID)
	p.bookState(book.Status, book.Generation)
	if len(book.Outline) > 0 {
		p.chapters(book.GeneratedCount(), len(book.Outline))
	}
	p.field("Language", language.DisplayName(book.Language))
	p.field("Target pages", strconv.Itoa(book.TargetPages))
	p.field("Images", string(book.ImagePolicy))
	p.field("Outline approved", yesNo(book.Approved))
	p.failure(book.Error, book.FailedChapter)
	if len(book.Outline) == 0 {
		return
	}

	rows := make([][]string, 0, len(book.Outline))
	for _, entry := range book.Outline {
		written, image, excerpt := "no", "", ""
		if ch, ok := book.Chapter(entry.Number); ok {
			written = "yes"
			excerpt = textutil.Excerpt(ch.Content, 60)
			if ch.ImageURL != "" {
				image = "yes"
			}
		}
		rows = append(rows, []string{
			strconv.Itoa(entry.Number),
			entry.Title,
			strconv.Itoa(entry.EstimatedPages),
			written,
			image,
			strings.TrimSpace(excerpt),
		})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(outlineColumns, rows))
}

func newBookDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book, its images and exported files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				if err := rt.Workflow.DeleteBook(cmd.Context(), args[0]); err != nil {
					return err
				}
				return emit(cmd, ctx, api.MessageResponse{Status: "deleted", Message: args[0]}, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted book %s\n", args[0])
					return nil
				})
			})
		},
	}
}
