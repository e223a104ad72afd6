package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/spreadmap/internal/assets"
	"github.com/MeKo-Tech/spreadmap/internal/batch"
	"github.com/MeKo-Tech/spreadmap/internal/config"
	"github.com/MeKo-Tech/spreadmap/internal/export"
	"github.com/MeKo-Tech/spreadmap/internal/pdf"
	"github.com/MeKo-Tech/spreadmap/internal/tile"
)

// extractCmd represents the extract command.
var extractCmd = &cobra.Command{
	Use:   "extract <project.json>",
	Short: "Fill tile PLU slots from the PDF text under each mapped region",
	Long: `Resolve every tile of the project to a PDF region through the spread export
map, read the text under the region and fill the tile's PLU slots and offer
details. Tiles that cannot be resolved are marked with a mapping reason.
The project file is updated in place unless --dry-run is given.

Examples:
  spreadmap extract project.json
  spreadmap extract project.json --exports spreads.json --format csv --output report.csv
  spreadmap extract project.json --max-slots 6 --no-progress`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("exports", "", "spread export map (default from config storage.export_file)")
	extractCmd.Flags().Int("max-slots", 0, "PLU slots per tile (default from config)")
	extractCmd.Flags().StringP("format", "f", "", "report format: text, json or csv (default from config)")
	extractCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	extractCmd.Flags().Bool("no-progress", false, "disable the progress bar")
	extractCmd.Flags().Bool("dry-run", false, "do not write the updated project back")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	fs := afero.NewOsFs()

	projectFile := args[0]
	project, err := tile.ReadFile(fs, projectFile)
	if err != nil {
		return fmt.Errorf("read project: %w", err)
	}

	exportsFile, _ := cmd.Flags().GetString("exports")
	if exportsFile == "" {
		exportsFile = cfg.Storage.ExportFile
	}
	exports, err := export.Load(fs, exportsFile)
	if err != nil {
		return fmt.Errorf("read spread exports: %w", err)
	}

	parser, err := loadParser(fs, cfg)
	if err != nil {
		return err
	}

	slots := cfg.Extraction.MaxPLUSlots
	if n, _ := cmd.Flags().GetInt("max-slots"); n > 0 {
		slots = n
	}
	format := cfg.Output.Format
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		format = f
	}

	progress := batch.NewMultiProgressCallback(
		batch.NewLogProgressCallback(slog.Default(), slog.LevelDebug).WithInterval(10),
	)
	if noBar, _ := cmd.Flags().GetBool("no-progress"); !noBar {
		progress.Add(newBarProgress(cmd.ErrOrStderr()))
	}

	orch := batch.New(
		pdf.AssetOpener(assets.NewDirStore(cfg.Storage.AssetsDir), cfg.Credentials()),
		parser,
		batch.WithMaxPLUSlots(slots),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := orch.RunWithProgress(ctx, project, exports, progress)
	if runErr != nil && !errors.Is(runErr, batch.ErrAborted) {
		return runErr
	}

	if dry, _ := cmd.Flags().GetBool("dry-run"); !dry {
		if err := tile.WriteFile(fs, projectFile, project); err != nil {
			return err
		}
		slog.Info("project updated", "path", projectFile)
	}

	report, err := batch.FormatReport(summary, project.Tiles, format)
	if err != nil {
		return fmt.Errorf("format report: %w", err)
	}
	if err := writeOutput(cmd, cfg, report); err != nil {
		return err
	}
	return runErr
}

// writeOutput prints s to --output when set, otherwise to stdout.
func writeOutput(cmd *cobra.Command, cfg *config.Config, s string) error {
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = cfg.Output.File
	}
	if out == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), s)
		return err
	}
	if err := os.WriteFile(out, []byte(s+"\n"), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s\n", out)
	return nil
}
