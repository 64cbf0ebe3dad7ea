package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leaguevault/leaguevault/internal/dupcheck"
	"github.com/leaguevault/leaguevault/internal/registry"
	"github.com/leaguevault/leaguevault/internal/store"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Audit the warehouse for duplicate-key violations",
		Long: `Run the store-side duplicate detector over every entity type.
A clean warehouse exits 0; any violation exits 1. Violations found
here are critical: the schema's unique constraints should have made
them impossible.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd)
		},
	}
}

func runCheck(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		_ = formatter.Error("E_CONFIG", err.Error(), nil)
		return WrapExitError(ExitCommandError, "E_CONFIG", err)
	}

	reg, err := registry.Load()
	if err != nil {
		_ = formatter.Error("E_REGISTRY", err.Error(), nil)
		return WrapExitError(ExitCommandError, "E_REGISTRY", err)
	}

	s, err := store.Open(cfg.DatabasePath)
	if err != nil {
		_ = formatter.Error("E_STORE", err.Error(), nil)
		return WrapExitError(ExitCommandError, "E_STORE", err)
	}
	defer s.Close()

	report, err := dupcheck.CheckStore(cmd.Context(), s.DB(), reg, reg.ApplyOrder())
	if err != nil {
		_ = formatter.Error("E_CHECK", err.Error(), nil)
		return WrapExitError(ExitCommandError, "E_CHECK", err)
	}

	if report.Empty() {
		return formatter.Success("✓ no duplicate violations")
	}

	if formatter.Format == "json" {
		_ = formatter.JSON(CLIResponse{
			Status: "error",
			Data:   report,
			Error:  &CLIError{Code: "E_VIOLATIONS", Message: fmt.Sprintf("%d violation(s) found", len(report.Violations))},
		})
	} else {
		fmt.Fprintln(formatter.Writer, "✗ duplicate violations found")
		for _, v := range report.Violations {
			fmt.Fprintf(formatter.Writer, "  %s\n", v)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d violation(s) found", len(report.Violations)))
}
