package main

import (
	"bufio"
	"fmt"

	"github.com/JonMunkholm/sheetimport/internal/inclusions"
	"github.com/spf13/cobra"
)

func newInclusionsCmd(a *app) *cobra.Command {
	var (
		style  string
		merge  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "inclusions <file>",
		Short: "Clean an inclusion list, one item per line",
		Long: `Inclusions cleans, validates and categorises each line of file and prints
the valid items in the chosen style. Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openFile(cmd, args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var lines []string
			sc := bufio.NewScanner(f)
			for sc.Scan() {
				lines = append(lines, sc.Text())
			}
			if err := sc.Err(); err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			batch := a.service.ProcessInclusions(lines)
			if merge {
				batch.Items = inclusions.MergeSimilarInclusions(batch.Items)
			}
			if asJSON {
				return a.printJSON(cmd.OutOrStdout(), batch)
			}

			out := cmd.OutOrStdout()
			if text := inclusions.FormatForDisplay(batch.Items, inclusions.Style(style)); text != "" {
				fmt.Fprintln(out, text)
			}
			for _, s := range batch.Suggestions {
				fmt.Fprintf(cmd.ErrOrStderr(), "note: %s\n", s)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&style, "style", string(inclusions.StyleBullet), "bullet, numbered or plain")
	cmd.Flags().BoolVar(&merge, "merge", false, "collapse near-duplicate items")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full processing result as JSON")
	return cmd
}
