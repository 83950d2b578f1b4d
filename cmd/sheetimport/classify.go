package main

import (
	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/spf13/cobra"
)

type classified struct {
	Value string `json:"value"`
	classify.Token
}

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>...",
		Short: "Classify cell values",
		Long:  "Classify prints the detected type, confidence and parsed value of each argument.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]classified, len(args))
			for i, v := range args {
				out[i] = classified{Value: v, Token: a.service.Classify(v)}
			}
			return a.printJSON(cmd.OutOrStdout(), out)
		},
	}
}
