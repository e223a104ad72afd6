package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// orderCmd groups the region ordering operations on one page.
var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Inspect and edit region inclusion, padding and reading order",
	Long: `Edit the detection state of one PDF page. Every subcommand takes the asset id
of the PDF and works on --page (default: the page last selected).

Examples:
  spreadmap order show Weekly-P01
  spreadmap order auto Weekly-P01 --page 2
  spreadmap order assign Weekly-P01 3 0 1
  spreadmap order toggle Weekly-P01 4
  spreadmap order pad Weekly-P01 2 -- -4`,
}

func init() {
	rootCmd.AddCommand(orderCmd)
	orderCmd.PersistentFlags().Int("page", 0, "page number (default: last selected page)")

	orderCmd.AddCommand(
		pageCommand("show <pdf-id>", "Show regions with include flag and position", 0, 0, nil),
		pageCommand("auto <pdf-id>", "Assign reading order automatically", 0, 0,
			func(ctx context.Context, ws *workspace, _ []int, _ []float64) error {
				_, err := ws.session.ApplyAutoOrder(ctx)
				return err
			}),
		pageCommand("reset <pdf-id>", "Clear all order assignments", 0, 0,
			func(ctx context.Context, ws *workspace, _ []int, _ []float64) error {
				return ws.session.ResetOrder(ctx)
			}),
		pageCommand("undo <pdf-id>", "Undo the last order assignment", 0, 0,
			func(ctx context.Context, ws *workspace, _ []int, _ []float64) error {
				return ws.session.UndoOrder(ctx)
			}),
		pageCommand("assign <pdf-id> <index...>", "Assign the next positions to regions in the given order", -1, 0,
			func(ctx context.Context, ws *workspace, idx []int, _ []float64) error {
				for _, i := range idx {
					if _, err := ws.session.AssignOrder(ctx, i); err != nil {
						return err
					}
				}
				return nil
			}),
		pageCommand("toggle <pdf-id> <index>", "Flip whether a region is exported", 1, 0,
			func(ctx context.Context, ws *workspace, idx []int, _ []float64) error {
				return ws.session.ToggleInclude(ctx, idx[0])
			}),
		pageCommand("pad <pdf-id> <index> <delta>", "Adjust the padding of one region in canvas pixels", 1, 1,
			func(ctx context.Context, ws *workspace, idx []int, vals []float64) error {
				return ws.session.AdjustPadding(ctx, idx[0], vals[0])
			}),
		pageCommand("padding <pdf-id> <px>", "Set the page-wide default padding in canvas pixels", 0, 1,
			func(ctx context.Context, ws *workspace, _ []int, vals []float64) error {
				return ws.session.SetPadding(ctx, vals[0])
			}),
		pageCommand("finish <pdf-id>", "Mark ordering of the page as finished", 0, 0,
			func(ctx context.Context, ws *workspace, _ []int, _ []float64) error {
				return ws.session.SetOrderingFinished(ctx, true)
			}),
	)
}

type pageOp func(ctx context.Context, ws *workspace, indices []int, values []float64) error

// pageCommand builds an order subcommand. nIdx is the number of integer
// region indices after the pdf id (-1 for one or more) and nVal the number
// of float arguments that follow them.
func pageCommand(use, short string, nIdx, nVal int, op pageOp) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pdfID, rest := args[0], args[1:]

			var indices []int
			count := nIdx
			if count < 0 {
				count = len(rest)
				if count == 0 {
					return fmt.Errorf("at least one region index is required")
				}
			}
			if len(rest) != count+nVal {
				return fmt.Errorf("expected %d argument(s) after the pdf id, got %d", count+nVal, len(rest))
			}
			for _, a := range rest[:count] {
				i, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("invalid region index %q", a)
				}
				indices = append(indices, i)
			}
			var values []float64
			for _, a := range rest[count:] {
				v, err := strconv.ParseFloat(a, 64)
				if err != nil {
					return fmt.Errorf("invalid number %q", a)
				}
				values = append(values, v)
			}

			page, _ := cmd.Flags().GetInt("page")
			ws, err := openWorkspace(ctx, GetConfig())
			if err != nil {
				return err
			}
			defer func() { _ = ws.Close() }()

			if err := ws.selectPage(ctx, pdfID, page); err != nil {
				return err
			}
			if op != nil {
				if err := op(ctx, ws, indices, values); err != nil {
					return err
				}
			}
			st, ok := ws.session.Page()
			if !ok {
				return fmt.Errorf("no detection state for %s", pdfID)
			}
			printRegions(cmd.OutOrStdout(), st)
			if st.OrderingFinished {
				fmt.Fprintln(cmd.OutOrStdout(), "ordering finished")
			}
			return nil
		},
	}
}
