package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/spreadmap/internal/offer"
	"github.com/MeKo-Tech/spreadmap/internal/plu"
)

// pluCmd represents the plu command.
var pluCmd = &cobra.Command{
	Use:   "plu <text...>",
	Short: "Extract PLU codes and offer details from text",
	Long: `Run the PLU extractor and offer parser on the given text, or on standard
input when the only argument is "-".

Examples:
  spreadmap plu "SAVE 20% (12345) each"
  spreadmap plu --format json "Art.-Nr. 4011-4013"
  pdftotext -layout page.pdf - | spreadmap plu -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPLU,
}

func init() {
	rootCmd.AddCommand(pluCmd)
	pluCmd.Flags().StringP("format", "f", "text", "output format: text or json")
}

type pluResult struct {
	Plus  []string    `json:"plus"`
	Offer offer.Offer `json:"offer"`
}

func runPLU(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	text := strings.Join(args, " ")
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(b)
	}

	parser, err := loadParser(afero.NewOsFs(), cfg)
	if err != nil {
		return err
	}
	res := pluResult{Plus: plu.Extract(text), Offer: parser.Parse(text)}
	if res.Plus == nil {
		res.Plus = []string{}
	}

	out := cmd.OutOrStdout()
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "text":
		if len(res.Plus) == 0 {
			fmt.Fprintln(out, "PLUs: (none)")
		} else {
			fmt.Fprintf(out, "PLUs: %s\n", strings.Join(res.Plus, ", "))
		}
		o := res.Offer
		if o.Brand != "" {
			fmt.Fprintf(out, "Brand: %s\n", o.Brand)
		}
		if o.PercentOff != nil {
			fmt.Fprintf(out, "Discount: %s\n", o.PercentOff.Raw)
		}
		if o.Title != "" {
			fmt.Fprintf(out, "Title: %s\n", o.Title)
		}
		if o.Description != "" {
			fmt.Fprintf(out, "Description: %s\n", o.Description)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
