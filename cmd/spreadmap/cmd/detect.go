package cmd

import (
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/spreadmap/internal/detector"
	"github.com/MeKo-Tech/spreadmap/internal/geometry"
	"github.com/MeKo-Tech/spreadmap/internal/ordering"
	"github.com/MeKo-Tech/spreadmap/internal/pdf"
	"github.com/MeKo-Tech/spreadmap/internal/session"
)

// detectCmd represents the detect command.
var detectCmd = &cobra.Command{
	Use:   "detect <pdf>",
	Short: "Detect advertisement regions on a PDF page",
	Long: `Store the PDF as an asset, render one page, detect rectangular regions and
save them as the page's detection state. Re-detecting a page resets its
include flags, padding overrides and ordering.

Examples:
  spreadmap detect Weekly-P01.pdf
  spreadmap detect Weekly-P01.pdf --page 2 --scale 3 --overlay p01-2.png
  spreadmap detect Weekly-P01.pdf --engine opencv --auto-order`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().String("id", "", "asset id (default: file name without extension)")
	detectCmd.Flags().Int("page", 1, "page number to detect (1-based)")
	detectCmd.Flags().Float64("scale", 0, "render scale (default from config)")
	detectCmd.Flags().String("engine", "", "detection engine: native or opencv")
	detectCmd.Flags().String("renderer", "", "page renderer: auto, fitz or embedded")
	detectCmd.Flags().Float64("canny-low", 0, "Canny low threshold (default from config)")
	detectCmd.Flags().Float64("canny-high", 0, "Canny high threshold (default from config)")
	detectCmd.Flags().Float64("min-area", 0, "minimum region area in percent of the page (default from config)")
	detectCmd.Flags().Int("dilate", -1, "dilation iterations (default from config)")
	detectCmd.Flags().String("overlay", "", "write a PNG review overlay to this path")
	detectCmd.Flags().Bool("auto-order", false, "assign reading order right after detection")
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	file := args[0]
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	name := filepath.Base(file)
	id, _ := cmd.Flags().GetString("id")
	if id == "" {
		id = strings.TrimSuffix(name, filepath.Ext(name))
	}
	page, _ := cmd.Flags().GetInt("page")

	th := cfg.Thresholds()
	if cmd.Flags().Changed("canny-low") {
		th.CannyLow, _ = cmd.Flags().GetFloat64("canny-low")
	}
	if cmd.Flags().Changed("canny-high") {
		th.CannyHigh, _ = cmd.Flags().GetFloat64("canny-high")
	}
	if cmd.Flags().Changed("min-area") {
		th.MinAreaPercent, _ = cmd.Flags().GetFloat64("min-area")
	}
	if cmd.Flags().Changed("dilate") {
		th.DilateIterations, _ = cmd.Flags().GetInt("dilate")
	}
	scale := cfg.Detector.RenderScale
	if cmd.Flags().Changed("scale") {
		scale, _ = cmd.Flags().GetFloat64("scale")
	}
	engine := cfg.Detector.Engine
	if cmd.Flags().Changed("engine") {
		engine, _ = cmd.Flags().GetString("engine")
	}
	rendererName := cfg.Detector.Renderer
	if cmd.Flags().Changed("renderer") {
		rendererName, _ = cmd.Flags().GetString("renderer")
	}

	pages, err := pdf.PageCount(data, cfg.Credentials())
	if err != nil {
		return err
	}
	if page < 1 || page > pages {
		return fmt.Errorf("%w: page %d of %d", session.ErrPageOutOfRange, page, pages)
	}

	plain, err := pdf.Plaintext(data, cfg.Credentials())
	if err != nil {
		return err
	}
	renderer, err := pdf.NewRenderer(rendererName)
	if err != nil {
		return err
	}
	rendered, err := renderer.Render(ctx, plain, page, pdf.RenderOptions{Scale: scale})
	if err != nil {
		return fmt.Errorf("render page %d: %w", page, err)
	}

	det, err := detector.NewWithEngine(engine)
	if err != nil {
		return err
	}
	regions, err := det.Detect(ctx, rendered.Image, rendered.Viewport, th)
	if err != nil {
		return err
	}

	ws, err := openWorkspace(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ws.Close() }()

	if err := ws.assets.Put(ctx, id, data); err != nil {
		return err
	}
	if _, err := ws.session.AddPDF(ctx, id, name, pages); err != nil {
		return err
	}
	if err := ws.session.Select(ctx, id, page); err != nil {
		return err
	}
	if err := ws.session.SetDetection(ctx, regions, rendered.Viewport); err != nil {
		return err
	}
	if auto, _ := cmd.Flags().GetBool("auto-order"); auto {
		if _, err := ws.session.ApplyAutoOrder(ctx); err != nil {
			return err
		}
	}

	st, _ := ws.session.Page()
	slog.Info("regions detected", "pdf_id", id, "page", page, "regions", len(regions), "engine", det.EngineName())
	printRegions(cmd.OutOrStdout(), st)

	if out, _ := cmd.Flags().GetString("overlay"); out != "" {
		if err := writeOverlay(out, rendered, st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "overlay written to %s\n", out)
	}
	return nil
}

// printRegions lists the regions of st with include flag and position.
func printRegions(w io.Writer, st session.PageDetectionState) {
	positions := ordering.Positions(st.OrderBoxes(), st.RectConfigs)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDX\tPOS\tINCLUDE\tX\tY\tW\tH\tRECT ID")
	for i, r := range st.Boxes {
		c := st.RectConfigs[i]
		pos := "-"
		if p, ok := positions[i]; ok {
			pos = fmt.Sprint(p)
		}
		fmt.Fprintf(tw, "%d\t%s\t%t\t%.1f\t%.1f\t%.1f\t%.1f\t%s\n",
			i, pos, c.Include, r.Rect.X, r.Rect.Y, r.Rect.Width, r.Rect.Height, c.RectID)
	}
	_ = tw.Flush()
}

func writeOverlay(path string, rendered pdf.Rendered, st session.PageDetectionState) error {
	positions := ordering.Positions(st.OrderBoxes(), st.RectConfigs)
	boxes := make([]detector.OverlayBox, len(st.Boxes))
	for i, r := range st.Boxes {
		label := fmt.Sprintf("#%d", i)
		if p, ok := positions[i]; ok {
			label = fmt.Sprintf("%d", p)
		}
		boxes[i] = detector.OverlayBox{
			Rect:     geometry.PadPdfRect(r.Rect, st.Padding(i), rendered.Viewport),
			Label:    label,
			Included: st.RectConfigs[i].Include,
		}
	}
	img := detector.RenderOverlay(rendered.Image, rendered.Viewport, boxes)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create overlay: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	return nil
}

