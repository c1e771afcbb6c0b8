package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/sensorreplay/internal/replay"
)

// ValidationResult summarises a config that loaded successfully.
type ValidationResult struct {
	Valid          bool     `json:"valid"`
	MinTimestamp   int64    `json:"min_timestamp"`
	MaxTimestamp   int64    `json:"max_timestamp"`
	LoadRate       int64    `json:"load_rate"`
	TimeRate       float64  `json:"time_rate"`
	Windows        int      `json:"windows"`
	Channels       int      `json:"channels"`
	Endpoints      []int    `json:"endpoints"`
	RegisterFormat string   `json:"register_format"`
	Datastore      string   `json:"datastore"`
	MonitorAddr    string   `json:"monitor_addr,omitempty"`
	KafkaTopic     string   `json:"kafka_topic,omitempty"`
	KafkaBrokers   []string `json:"kafka_brokers,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a replay config and its channel directory",
		Long: `Validate a replay config without touching the datastore.

Loads the config file (with SENSORREPLAY_* environment overrides), checks
every setting, loads both directory tables and prints a summary.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, configPath, cmd)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the replay config file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runValidate(opts *RootOptions, configPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Loading config %s", configPath)
	st, code, err := loadSetup(configPath)
	if err != nil {
		if outErr := formatter.Error(code, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	result := summarise(st)
	formatter.VerboseLog("Loaded %d channel(s) on %d endpoint(s)", result.Channels, len(result.Endpoints))

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	writeValidationText(formatter.Writer, result)
	return nil
}

func summarise(st *setup) ValidationResult {
	cfg := st.Config

	seen := make(map[int]bool)
	for _, ch := range st.Directory.Channels() {
		e, _ := st.Directory.Lookup(ch)
		seen[e.EndpointID] = true
	}
	endpoints := make([]int, 0, len(seen))
	for id := range seen {
		endpoints = append(endpoints, id)
	}
	sort.Ints(endpoints)

	return ValidationResult{
		Valid:          true,
		MinTimestamp:   cfg.MinTimestamp,
		MaxTimestamp:   cfg.MaxTimestamp,
		LoadRate:       cfg.LoadRate,
		TimeRate:       cfg.TimeRate(),
		Windows:        len(replay.Windows(cfg.MinTimestamp, cfg.MaxTimestamp, cfg.LoadRate)),
		Channels:       st.Directory.Len(),
		Endpoints:      endpoints,
		RegisterFormat: cfg.RegisterFormat,
		Datastore:      cfg.DSN(),
		MonitorAddr:    cfg.MonitorAddr,
		KafkaTopic:     cfg.KafkaTopic,
		KafkaBrokers:   cfg.KafkaBrokers,
	}
}

func writeValidationText(w io.Writer, r ValidationResult) {
	fmt.Fprintln(w, "✓ Config valid")
	fmt.Fprintf(w, "  range:     [%d, %d)\n", r.MinTimestamp, r.MaxTimestamp)
	fmt.Fprintf(w, "  windows:   %d (load_rate %d)\n", r.Windows, r.LoadRate)
	fmt.Fprintf(w, "  time rate: %g\n", r.TimeRate)
	fmt.Fprintf(w, "  channels:  %d on endpoints %v\n", r.Channels, r.Endpoints)
	fmt.Fprintf(w, "  format:    %s\n", r.RegisterFormat)
	fmt.Fprintf(w, "  datastore: %s\n", r.Datastore)
	if r.MonitorAddr != "" {
		fmt.Fprintf(w, "  monitor:   %s\n", r.MonitorAddr)
	}
	if r.KafkaTopic != "" {
		fmt.Fprintf(w, "  kafka:     %s via %v\n", r.KafkaTopic, r.KafkaBrokers)
	}
}
