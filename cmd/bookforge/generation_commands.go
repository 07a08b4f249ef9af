package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"bookforge/internal/api"
	"bookforge/internal/daemonrun"
	"bookforge/internal/store"
)

func newOutlineCommand(ctx *commandContext) *cobra.Command {
	outlineCmd := &cobra.Command{
		Use:   "outline",
		Short: "Generate, edit and approve book outlines",
	}

	outlineCmd.AddCommand(&cobra.Command{
		Use:   "generate <id>",
		Short: "Ask the text provider for a chapter outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				book, err := rt.Workflow.GenerateOutline(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, book, func() error {
					printBook(cmd, book)
					return nil
				})
			})
		},
	})

	var file string
	editCmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace the outline with entries from a JSON file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outline, err := readOutline(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				book, err := rt.Workflow.UpdateOutline(cmd.Context(), args[0], outline)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, book, func() error {
					printBook(cmd, book)
					return nil
				})
			})
		},
	}
	editCmd.Flags().StringVarP(&file, "file", "f", "-", "Outline JSON: an array of entries or {\"outline\": [...]}")
	outlineCmd.AddCommand(editCmd)

	outlineCmd.AddCommand(&cobra.Command{
		Use:   "approve <id>",
		Short: "Approve the outline and queue chapter generation for the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				book, err := rt.Workflow.ApproveAndGenerate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, book, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Outline approved; %d chapters queued for generation\n", len(book.Outline))
					return nil
				})
			})
		},
	})
	return outlineCmd
}

// readOutline accepts either a bare JSON array of entries or an object with
// an "outline" field.
func readOutline(stdin io.Reader, path string) ([]store.OutlineEntry, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read outline: %w", err)
	}
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("[")) {
		var entries []store.OutlineEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse outline: %w", err)
		}
		return entries, nil
	}
	var req api.OutlineRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse outline: %w", err)
	}
	return req.Outline, nil
}

func newChapterCommand(ctx *commandContext) *cobra.Command {
	chapterCmd := &cobra.Command{
		Use:   "chapter",
		Short: "Generate chapter text",
	}

	chapterCmd.AddCommand(&cobra.Command{
		Use:   "generate <id> <n>",
		Short: "Generate or regenerate one chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseChapterArg(args[1])
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				book, err := rt.Workflow.GenerateChapter(cmd.Context(), args[0], n)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, book, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Chapter %d written (%d of %d complete)\n",
						n, book.GeneratedCount(), len(book.Outline))
					return nil
				})
			})
		},
	})

	chapterCmd.AddCommand(&cobra.Command{
		Use:   "all <id>",
		Short: "Generate every missing chapter in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				book, err := rt.Workflow.GenerateAllChapters(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, book, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "%d of %d chapters complete; status %s\n",
						book.GeneratedCount(), len(book.Outline), book.Status)
					return nil
				})
			})
		},
	})
	return chapterCmd
}

func newImageCommand(ctx *commandContext) *cobra.Command {
	imageCmd := &cobra.Command{
		Use:   "image",
		Short: "Resolve, replace and remove chapter illustrations",
	}

	imageCmd.AddCommand(&cobra.Command{
		Use:   "generate <id> <n>",
		Short: "Resolve an illustration for one chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseChapterArg(args[1])
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				book, err := rt.Workflow.GenerateImage(cmd.Context(), args[0], n)
				if err != nil {
					return err
				}
				resp := api.ImageResponse{Chapter: n, ImageURL: api.ChapterImageURL(book, n)}
				return emit(cmd, ctx, resp, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Chapter %d illustrated: %s\n", n, resp.ImageURL)
					return nil
				})
			})
		},
	})

	imageCmd.AddCommand(&cobra.Command{
		Use:   "delete <id> <n>",
		Short: "Remove a chapter's illustration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseChapterArg(args[1])
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				if _, err := rt.Workflow.DeleteImage(cmd.Context(), args[0], n); err != nil {
					return err
				}
				return emit(cmd, ctx, api.ImageResponse{Chapter: n}, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Chapter %d illustration removed\n", n)
					return nil
				})
			})
		},
	})

	imageCmd.AddCommand(&cobra.Command{
		Use:   "all <id>",
		Short: "Illustrate every written chapter that has no image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				report, err := rt.Workflow.GenerateAllImages(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				resp := api.FromImageReport(report)
				return emit(cmd, ctx, resp, func() error {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "%d illustrations stored\n", len(resp.Generated))
					failed := make([]int, 0, len(resp.Failed))
					for n := range resp.Failed {
						failed = append(failed, n)
					}
					sort.Ints(failed)
					for _, n := range failed {
						fmt.Fprintf(out, "  chapter %d failed: %s\n", n, strings.TrimSpace(resp.Failed[n]))
					}
					return nil
				})
			})
		},
	})
	return imageCmd
}
