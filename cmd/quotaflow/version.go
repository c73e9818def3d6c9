package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"utrix-hq/quotaflow/pkg/telemetry/readiness"
)

var (
	// Version is the semantic version (set by build flags)
	Version = "0.1.0"
	// GitCommit is the git commit hash (set by build flags)
	GitCommit = "unknown"
	// BuildDate is the build timestamp (set by build flags)
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print detailed version information including Git commit and build date.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := readiness.NewVersionInfo(Version, GitCommit, BuildDate)
		if outputFormat != "text" {
			return render(cmd.OutOrStdout(), info)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "quotaflow %s\n", info.Version)
		fmt.Fprintf(w, "Git Commit: %s\n", info.Commit)
		fmt.Fprintf(w, "Build Date: %s\n", info.BuildTime)
		fmt.Fprintf(w, "Go Version: %s\n", info.GoVersion)
		fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
