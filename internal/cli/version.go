package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

// VersionInfo is the version command's JSON payload.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format: rootOpts.Format,
				Writer: cmd.OutOrStdout(),
			}
			info := VersionInfo{
				Version:   Version,
				Commit:    Commit,
				GoVersion: runtime.Version(),
			}
			if formatter.Format == "json" {
				return formatter.JSON(CLIResponse{Status: "ok", Data: info})
			}
			fmt.Fprintf(formatter.Writer, "leaguevault %s (%s, %s)\n", info.Version, info.Commit, info.GoVersion)
			return nil
		},
	}
}
