package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sensorreplay/internal/store"
)

// SeedFile is the YAML layout accepted by the seed command.
type SeedFile struct {
	Rows []store.Record `yaml:"rows"`
}

// SeedResult reports what was written.
type SeedResult struct {
	Database string `json:"database"`
	Rows     int    `json:"rows"`
	MinTS    int64  `json:"min_timestamp"`
	MaxTS    int64  `json:"max_timestamp"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "seed <rows.yaml>",
		Short: "Write readings into a SQLite datastore",
		Long: `Write historical readings from a YAML file into a SQLite datastore,
creating the database and its schema if needed.

The file holds a single "rows" list of {channel, timestamp, value} entries.

Example:
  sensorreplay seed --db ./data/replay.db ./rows.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, dbPath, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSeed(opts *RootOptions, dbPath, rowsPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	rows, err := readSeedFile(rowsPath)
	if err != nil {
		if outErr := formatter.Error(ErrCodeGeneric, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to read rows", err)
	}
	formatter.VerboseLog("Read %d row(s) from %s", len(rows), rowsPath)

	st, err := store.Open(dbPath)
	if err != nil {
		if outErr := formatter.Error(ErrCodeStore, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := st.WriteRecords(ctx, rows); err != nil {
		if outErr := formatter.Error(ErrCodeStore, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to write rows", err)
	}

	result := SeedResult{Database: dbPath, Rows: len(rows)}
	for i, r := range rows {
		if i == 0 || r.Timestamp < result.MinTS {
			result.MinTS = r.Timestamp
		}
		if i == 0 || r.Timestamp > result.MaxTS {
			result.MaxTS = r.Timestamp
		}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Seeded %d row(s) into %s", result.Rows, result.Database)
	if result.Rows > 0 {
		fmt.Fprintf(formatter.Writer, " (timestamps %d..%d)", result.MinTS, result.MaxTS)
	}
	fmt.Fprintln(formatter.Writer)
	return nil
}

func readSeedFile(path string) ([]store.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var f SeedFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, r := range f.Rows {
		if r.Channel == "" {
			return nil, fmt.Errorf("parse %s: rows[%d]: channel is required", path, i)
		}
	}
	return f.Rows, nil
}
