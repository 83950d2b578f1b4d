package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/sheetimport/internal/config"
	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/logging"
	"github.com/JonMunkholm/sheetimport/internal/templatestore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app holds what every subcommand shares once the root has run.
type app struct {
	verbose bool
	compact bool

	cfg     *config.Config
	store   templatestore.Store
	service *core.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "sheetimport",
		Short: "Analyse resort pricing workbooks and map tabular imports",
		Long: `sheetimport reads resort pricing spreadsheets, detects their layout, extracts
and normalizes the pricing grid, cleans inclusion lists and maps tabular
imports onto the system fields. Configuration comes from the environment
and an optional .env file, as for the server.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store != nil {
				return a.store.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	root.PersistentFlags().BoolVar(&a.compact, "compact", false, "print JSON without indentation")

	root.AddCommand(
		newAnalyzeCmd(a),
		newClassifyCmd(a),
		newInclusionsCmd(a),
		newMapCmd(a),
	)
	return root
}

// setup loads configuration and builds the service. Logs go to stderr so
// stdout stays machine-readable.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := cfg.Logging.Level
	if a.verbose {
		level = "debug"
	}
	logging.Setup(os.Stderr, level, cfg.Logging.Format)

	opts, err := core.OptionsFromConfig(cfg)
	if err != nil {
		return userError(err)
	}
	store, err := templatestore.Open(cmd.Context(), templatestore.OptionsFromConfig(cfg.Store))
	if err != nil {
		return fmt.Errorf("open template store: %w", err)
	}

	a.cfg = cfg
	a.store = store
	a.service = core.NewService(store, opts)
	return nil
}

func (a *app) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if !a.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// userError renders err the way the API does, keeping the original for
// errors.Is.
func userError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
}

// openFile opens path, or the command's stdin for "-".
func openFile(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}
