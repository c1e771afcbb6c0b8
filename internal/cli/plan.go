package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sensorreplay/internal/replay"
	"github.com/roach88/sensorreplay/internal/store"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	ConfigPath string
	Count      bool // query the datastore for per-window row counts
}

// PlannedWindow is one datastore query of the replay with the span of
// virtual time its readings are released in.
type PlannedWindow struct {
	Index        int    `json:"index"`
	From         int64  `json:"from"`
	To           int64  `json:"to"`
	ReleaseFrom  string `json:"release_from"`
	ReleaseUntil string `json:"release_until"`
	Rows         *int64 `json:"rows,omitempty"`
}

// PlanResult is the full window schedule.
type PlanResult struct {
	MinTimestamp int64           `json:"min_timestamp"`
	MaxTimestamp int64           `json:"max_timestamp"`
	LoadRate     int64           `json:"load_rate"`
	TimeRate     float64         `json:"time_rate"`
	Duration     string          `json:"duration"`
	Windows      []PlannedWindow `json:"windows"`
	TotalRows    *int64          `json:"total_rows,omitempty"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the window schedule of a replay",
		Long: `Print the query windows a replay will load and when their readings
are released, relative to the start of the replay.

With --count the datastore is opened once and the rows of every window
are counted.

Example:
  sensorreplay plan --config ./replay.yaml
  sensorreplay plan --config ./replay.yaml --count --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to the replay config file (required)")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "count datastore rows per window")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runPlan(opts *PlanOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, code, err := loadSetup(opts.ConfigPath)
	if err != nil {
		if outErr := formatter.Error(code, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	cfg := st.Config

	rate := cfg.TimeRate()
	plan := PlanResult{
		MinTimestamp: cfg.MinTimestamp,
		MaxTimestamp: cfg.MaxTimestamp,
		LoadRate:     cfg.LoadRate,
		TimeRate:     rate,
		Duration:     replay.VirtualDelay(cfg.MaxTimestamp, cfg.MinTimestamp, rate).String(),
	}
	for i, w := range replay.Windows(cfg.MinTimestamp, cfg.MaxTimestamp, cfg.LoadRate) {
		plan.Windows = append(plan.Windows, PlannedWindow{
			Index:        i + 1,
			From:         w.From,
			To:           w.To,
			ReleaseFrom:  replay.VirtualDelay(w.From, cfg.MinTimestamp, rate).String(),
			ReleaseUntil: replay.VirtualDelay(w.To, cfg.MinTimestamp, rate).String(),
		})
	}

	if opts.Count {
		formatter.VerboseLog("Counting rows in %s", cfg.DSN())
		if err := countRows(cmd.Context(), cfg.DSN(), &plan); err != nil {
			if outErr := formatter.Error(ErrCodeStore, err.Error(), nil); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitCommandError, "failed to count rows", err)
		}
	}

	if opts.Format == "json" {
		return formatter.Success(plan)
	}
	writePlanText(formatter.Writer, plan)
	return nil
}

func countRows(ctx context.Context, dsn string, plan *PlanResult) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	st := store.New(dsn)
	if err := st.Connect(ctx); err != nil {
		return err
	}
	defer st.Close()

	var total int64
	for i := range plan.Windows {
		w := &plan.Windows[i]
		n, err := st.CountWindow(ctx, w.From, w.To)
		if err != nil {
			return fmt.Errorf("count window [%d, %d): %w", w.From, w.To, err)
		}
		w.Rows = &n
		total += n
	}
	plan.TotalRows = &total
	return nil
}

func writePlanText(w io.Writer, p PlanResult) {
	fmt.Fprintf(w, "Replay plan: [%d, %d) load_rate=%d time_rate=%g duration=%s\n",
		p.MinTimestamp, p.MaxTimestamp, p.LoadRate, p.TimeRate, p.Duration)
	for _, win := range p.Windows {
		fmt.Fprintf(w, "  window %d: [%d, %d) release %s..%s",
			win.Index, win.From, win.To, win.ReleaseFrom, win.ReleaseUntil)
		if win.Rows != nil {
			fmt.Fprintf(w, " rows=%d", *win.Rows)
		}
		fmt.Fprintln(w)
	}
	if p.TotalRows != nil {
		fmt.Fprintf(w, "Total rows: %d\n", *p.TotalRows)
	}
}
