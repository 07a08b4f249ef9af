package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookforge/internal/config"
	"bookforge/internal/daemonrun"
	"bookforge/internal/export"
	"bookforge/internal/fileutil"
	"bookforge/internal/store"
)

type exportResult struct {
	BookID   string `json:"book_id"`
	Format   string `json:"format"`
	Path     string `json:"path"`
	Bytes    int    `json:"bytes"`
	Cached   bool   `json:"cached"`
	FileName string `json:"file_name"`
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Render a book as PDF, DOCX or EPUB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				artifact, err := rt.Exporter.Export(cmd.Context(), args[0], format)
				if err != nil {
					return err
				}
				target, err := exportTarget(artifact, output, rt.Config)
				if err != nil {
					return err
				}
				switch {
				case target == artifact.Path:
				case artifact.Path != "":
					if err := fileutil.CopyFile(artifact.Path, target); err != nil {
						return fmt.Errorf("copy export: %w", err)
					}
				default:
					if err := fileutil.WriteFileAtomic(target, artifact.Data, 0o644); err != nil {
						return fmt.Errorf("write export: %w", err)
					}
				}
				result := exportResult{
					BookID:   artifact.BookID,
					Format:   string(artifact.Format),
					Path:     target,
					Bytes:    len(artifact.Data),
					Cached:   artifact.Cached,
					FileName: artifact.FileName,
				}
				return emit(cmd, ctx, result, func() error {
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", target, result.Bytes)
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatPDF), "Export format: pdf, docx or epub")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file or directory (default: the export directory)")
	return cmd
}

// exportTarget resolves where the artifact is written: an explicit file, a
// directory (using the artifact's file name), or the configured export dir.
func exportTarget(artifact *export.Artifact, output string, cfg *config.Config) (string, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		if artifact.Path != "" {
			return artifact.Path, nil
		}
		return filepath.Join(cfg.Paths.ExportDir, artifact.FileName), nil
	}
	expanded, err := config.ExpandPath(output)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(output, string(filepath.Separator)) || filepath.Ext(expanded) == "" {
		return filepath.Join(expanded, artifact.FileName), nil
	}
	return expanded, nil
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id>",
		Short: "Show chapter generation progress",
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

			progress, err := st.Progress(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emit(cmd, ctx, progress, func() error {
				printProgress(cmd, progress)
				return nil
			})
		},
	}
}

func printProgress(cmd *cobra.Command, p *store.Progress) {
	out := cmd.OutOrStdout()
	sp := newStatusPrinter(out)

	sp.header(p.Title)
	sp.bookState(p.Status, p.Generation)
	sp.chapters(p.GeneratedChapters, p.TotalChapters)
	sp.failure(p.Error, p.FailedChapter)
	if len(p.Chapters) == 0 {
		return
	}
	rows := make([][]string, 0, len(p.Chapters))
	for _, ch := range p.Chapters {
		rows = append(rows, []string{strconv.Itoa(ch.Number), ch.Title, yesNo(ch.Generated), yesNo(ch.HasImage)})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(progressColumns, rows))
}
