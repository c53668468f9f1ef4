package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"datatidy/internal/config"
	"datatidy/internal/infrastructure"
	"datatidy/internal/services"
	"datatidy/internal/storage"
	"datatidy/internal/validation"
	"datatidy/pkg/contracts"
	api "datatidy/pkg/contracts/api/v1"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "datatidy",
		Short: "Inspect and clean CSV datasets",
		Long: `datatidy loads a CSV file, reports its shape and missing values, and
writes a cleaned copy next to it as cleaned_<name>.

Example:
  datatidy stats people.csv
  datatidy clean people.csv --drop-duplicates --rule age:null:mean
  datatidy view cleaned_people.csv --type range --start 10 -n 5`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newVersionCmd(),
		newStatsCmd(opts),
		newViewCmd(opts),
		newCleanCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), contracts.GetFullVersionString())
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats FILE",
		Short: "Print row, column, missing value and duplicate counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(opts, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			resp, err := ds.svc.Stats(cmd.Context(), ds.name)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newViewCmd(opts *rootOptions) *cobra.Command {
	var (
		viewType string
		n, start int
	)

	cmd := &cobra.Command{
		Use:   "view FILE",
		Short: "Print a head, tail or range of rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(opts, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			q := api.ViewQuery{Type: viewType}
			if cmd.Flags().Changed("n") {
				q.N = &n
			}
			if cmd.Flags().Changed("start") {
				q.Start = &start
			}
			resp, err := ds.svc.View(cmd.Context(), ds.name, q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&viewType, "type", "head", "View type: head, tail or range")
	cmd.Flags().IntVarP(&n, "n", "n", config.DefaultViewRows, "Number of rows")
	cmd.Flags().IntVar(&start, "start", 0, "First row of a range view")
	return cmd
}

func newCleanCmd(opts *rootOptions) *cobra.Command {
	var (
		dropDuplicates bool
		dropColumns    []string
		rules          []string
		opsFile        string
	)

	cmd := &cobra.Command{
		Use:   "clean FILE",
		Short: "Write a cleaned copy of FILE as cleaned_FILE",
		Long: `Rules are COLUMN:MISSING_TYPE:ACTION[:REPLACEMENT], for example
  --rule score:null:median
  --rule city:empty:replace:unknown
Operations may also be read from a JSON file with --ops, in the same shape
as the "operations" object of the HTTP clean request. Flags are appended to
the file's operations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := loadOperations(opsFile)
			if err != nil {
				return err
			}
			ops.DropDuplicates = ops.DropDuplicates || dropDuplicates
			ops.DropColumns = append(ops.DropColumns, dropColumns...)
			for _, text := range rules {
				op, err := parseRule(text)
				if err != nil {
					return err
				}
				ops.MissingValueOperations = append(ops.MissingValueOperations, op)
			}

			ds, err := openDataset(opts, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			resp, err := ds.svc.Clean(cmd.Context(), &api.CleanRequest{Filename: ds.name, Operations: ops})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().BoolVar(&dropDuplicates, "drop-duplicates", false, "Remove exact duplicate rows")
	cmd.Flags().StringArrayVar(&dropColumns, "drop-column", nil, "Column to remove (repeatable)")
	cmd.Flags().StringArrayVar(&rules, "rule", nil, "Missing value rule COLUMN:MISSING_TYPE:ACTION[:REPLACEMENT] (repeatable)")
	cmd.Flags().StringVar(&opsFile, "ops", "", "Path to a JSON file of cleaning operations")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Convert FILE to csv or xlsx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(opts, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			res, err := ds.svc.Export(cmd.Context(), ds.name, format)
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(filepath.Dir(args[0]), res.Filename)
			}
			if err := ds.files.ValidateOutputFile(output); err != nil {
				return err
			}
			if err := os.WriteFile(output, res.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "xlsx", "Export format: csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: next to FILE)")
	return cmd
}

// localDataset is a dataset file served from its own directory.
type localDataset struct {
	svc   *services.DatasetService
	name  string
	files *validation.FileValidator
}

// openDataset serves the directory holding path from a filesystem store.
func openDataset(opts *rootOptions, path string, logOut io.Writer) (*localDataset, error) {
	cfg, err := config.LoadFrom(opts.configFile)
	if err != nil {
		return nil, err
	}
	cfg.Logging.Level = opts.logLevel
	logger := infrastructure.NewLogger(cfg.Logging, logOut)

	files := validation.NewFileValidator(logger)
	if err := files.ValidateCSVFile(path); err != nil {
		return nil, err
	}

	store, err := storage.NewFileStore(filepath.Dir(path), logger)
	if err != nil {
		return nil, err
	}
	svc, err := services.NewDatasetService(store, cfg.Dataset, logger)
	if err != nil {
		return nil, err
	}
	return &localDataset{svc: svc, name: filepath.Base(path), files: files}, nil
}

func loadOperations(path string) (api.CleanOperations, error) {
	var ops api.CleanOperations
	if path == "" {
		return ops, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ops, fmt.Errorf("read operations: %w", err)
	}
	if err := json.Unmarshal(data, &ops); err != nil {
		return ops, fmt.Errorf("parse operations %s: %w", path, err)
	}
	return ops, nil
}

// parseRule reads COLUMN:MISSING_TYPE:ACTION[:REPLACEMENT]. The replacement
// may itself contain colons.
func parseRule(text string) (api.MissingValueOperation, error) {
	parts := strings.SplitN(text, ":", 4)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return api.MissingValueOperation{}, fmt.Errorf("invalid rule %q: want COLUMN:MISSING_TYPE:ACTION[:REPLACEMENT]", text)
	}
	op := api.MissingValueOperation{
		Column:      parts[0],
		MissingType: parts[1],
		Action:      parts[2],
	}
	if len(parts) == 4 {
		r := api.Replacement(parts[3])
		op.Replacement = &r
	}
	return op, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
