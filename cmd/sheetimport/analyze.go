package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		sheetName string
		summary   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file.xlsx>",
		Short: "Analyse every sheet of a pricing workbook",
		Long: `Analyse runs layout detection, metadata and pricing extraction, price
normalization and validation, and inclusion detection over each sheet, and
prints the result as JSON. Use - to read the workbook from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFile(cmd, args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := a.service.AnalyzeWorkbook(cmd.Context(), f)
			if err != nil {
				return userError(err)
			}
			if sheetName != "" {
				if err := keepSheet(res, sheetName); err != nil {
					return err
				}
			}

			if summary {
				return printSummary(cmd.OutOrStdout(), res)
			}
			return a.printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&sheetName, "sheet", "s", "", "only report the named sheet")
	cmd.Flags().BoolVar(&summary, "summary", false, "print a table instead of JSON")
	return cmd
}

// keepSheet drops every sheet but name, matched case-insensitively.
func keepSheet(res *core.WorkbookAnalysis, name string) error {
	for _, s := range res.Sheets {
		if strings.EqualFold(s.Name, name) {
			res.Sheets = []core.SheetAnalysis{s}
			return nil
		}
	}
	names := make([]string, len(res.Sheets))
	for i, s := range res.Sheets {
		names[i] = s.Name
	}
	return fmt.Errorf("sheet %q not found (have %s)", name, strings.Join(names, ", "))
}

func printSummary(w io.Writer, res *core.WorkbookAnalysis) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SHEET\tLAYOUT\tCURRENCY\tENTRIES\tAVAILABLE\tERRORS\tWARNINGS\tINCLUSIONS")
	for _, s := range res.Sheets {
		items := 0
		for _, b := range s.Inclusions {
			items += len(b.Items.Valid)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			s.Name,
			s.Layout.Primary.Type,
			s.Extraction.Matrix.Metadata.Currency,
			s.Pricing.Summary.TotalEntries,
			s.Pricing.Summary.AvailableEntries,
			s.Validation.ErrorCount,
			s.Validation.WarningCount,
			items,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, s := range res.Suggestions {
		fmt.Fprintf(w, "- %s\n", s)
	}
	return nil
}
