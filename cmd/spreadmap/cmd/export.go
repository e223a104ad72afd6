package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/spreadmap/internal/export"
	"github.com/MeKo-Tech/spreadmap/internal/session"
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export [pdf-id...]",
	Short: "Write the spread export map for the detected PDFs",
	Long: `Project the detection state of every PDF (or only the given ones) into the
spread export map consumed by extract. Padding is applied to the exported
rectangles and only ordered, included regions carry an order index.

Examples:
  spreadmap export
  spreadmap export Weekly-P01 Weekly-P02 --output spreads.json`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "export file (default from config storage.export_file)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	ws, err := openWorkspace(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	entries := ws.session.Entries()
	if len(args) > 0 {
		want := make(map[string]bool, len(args))
		for _, id := range args {
			if _, ok := ws.session.Entry(id); !ok {
				return fmt.Errorf("%w: %s", session.ErrUnknownPDF, id)
			}
			want[id] = true
		}
		kept := entries[:0]
		for _, e := range entries {
			if want[e.ID] {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	m := export.ProjectAll(entries)
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = cfg.Storage.ExportFile
	}
	if err := export.Save(afero.NewOsFs(), out, m); err != nil {
		return err
	}

	boxes := 0
	for _, e := range m {
		for _, p := range e.Pages.All() {
			boxes += len(p.Boxes)
		}
	}
	slog.Info("spread export written", "path", out, "spreads", len(m), "boxes", boxes)
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d spread(s) with %d region(s) to %s\n", len(m), boxes, out)
	return nil
}
