package main

import (
	"fmt"
	"regexp"

	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/mapping"
	"github.com/spf13/cobra"
)

func newMapCmd(a *app) *cobra.Command {
	var (
		templateID string
		saveAs     string
	)

	cmd := &cobra.Command{
		Use:   "map <file.csv>",
		Short: "Map and validate a CSV import",
		Long: `Map reads a CSV file, picks column mappings from --template, from the best
matching saved template, or from fresh suggestions, then applies and
validates them. With --save the mappings used are stored as a new template
keyed on the file's headers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFile(cmd, args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := a.service.ImportCSV(cmd.Context(), f, templateID)
			if err != nil {
				return userError(err)
			}

			if saveAs != "" {
				t, err := a.service.Templates().Create(cmd.Context(), templateFrom(saveAs, res))
				if err != nil {
					return userError(err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "saved template %s (%s)\n", t.Name, t.ID)
			}
			return a.printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&templateID, "template", "t", "", "saved template id to apply")
	cmd.Flags().StringVar(&saveAs, "save", "", "save the mappings as a template with this name")
	return cmd
}

// templateFrom builds a template whose patterns match the mapped headers
// exactly.
func templateFrom(name string, res *core.ImportResult) mapping.Template {
	patterns := make([]string, 0, len(res.Mappings))
	for _, m := range res.Mappings {
		patterns = append(patterns, "^"+regexp.QuoteMeta(m.ExcelColumn)+"$")
	}
	return mapping.Template{
		Name:               name,
		Mappings:           res.Mappings,
		ApplicablePatterns: patterns,
	}
}
