package cli

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leaguevault/leaguevault/internal/batch"
	"github.com/leaguevault/leaguevault/internal/coordinator"
	"github.com/leaguevault/leaguevault/internal/metrics"
	"github.com/leaguevault/leaguevault/internal/registry"
	"github.com/leaguevault/leaguevault/internal/store"
)

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <batch.json>",
		Short: "Apply one extraction batch to the warehouse",
		Long: `Apply a batch file through the full pipeline: validation,
duplicate detection, per-entity merge, and transactional commit.

Exit codes: 0 committed, 1 rejected or rolled back, 2 command error.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], cmd)
		},
	}
}

func runLoad(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return outputLoadError(formatter, "E_CONFIG", err)
	}

	reg, err := registry.Load()
	if err != nil {
		return outputLoadError(formatter, "E_REGISTRY", err)
	}

	b, err := batch.DecodeFile(path)
	if err != nil {
		return outputLoadError(formatter, "E_BATCH", err)
	}
	formatter.VerboseLog("batch %s: %d records across %d entity types", b.ID, b.Total(), len(b.Types(reg)))

	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return outputLoadError(formatter, "E_STORE", err)
	}
	defer s.Close()

	c := coordinator.New(s, reg,
		coordinator.WithTimeout(cfg.ApplyTimeout()),
		coordinator.WithMetrics(newProcessMetrics()),
	)

	summary, err := c.Apply(cmd.Context(), b)
	if err != nil {
		return outputSummaryRejected(formatter, summary, err)
	}
	return outputSummaryCommitted(formatter, summary)
}

// newProcessMetrics registers the engine collectors once per process.
// A one-shot CLI never scrapes them, but the wiring is identical to a
// long-lived caller's.
func newProcessMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func outputLoadError(f *OutputFormatter, code string, err error) error {
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, code, err)
}

func outputSummaryCommitted(f *OutputFormatter, summary *coordinator.Summary) error {
	if f.Format == "json" {
		return f.JSON(CLIResponse{Status: "ok", Data: summary})
	}

	fmt.Fprintf(f.Writer, "✓ batch %s committed\n", summary.BatchID)
	for _, e := range summary.Entities {
		fmt.Fprintf(f.Writer, "  %-14s inserted=%d updated=%d deleted=%d skipped=%d\n",
			e.EntityType, e.Inserted, e.Updated, e.Deleted, e.Skipped)
	}
	for _, v := range summary.Violations {
		fmt.Fprintf(f.Writer, "  note: %s\n", v)
	}
	return nil
}

func outputSummaryRejected(f *OutputFormatter, summary *coordinator.Summary, err error) error {
	if errors.Is(err, coordinator.ErrBusy) {
		_ = f.Error("E_BUSY", err.Error(), nil)
		return WrapExitError(ExitCommandError, "E_BUSY", err)
	}

	code := "E_APPLY"
	var me *coordinator.MergeError
	if errors.As(err, &me) {
		code = string(me.Code)
	}

	if f.Format == "json" {
		_ = f.JSON(CLIResponse{
			Status: "error",
			Data:   summary,
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
	} else {
		fmt.Fprintf(f.Writer, "✗ batch %s rolled back\n", summary.BatchID)
		for _, v := range summary.Violations {
			fmt.Fprintf(f.Writer, "  %s\n", v)
		}
		fmt.Fprintf(f.Writer, "  %s\n", err)
	}
	return WrapExitError(ExitFailure, code, err)
}
