package main

import (
	"fmt"
	"os"

	"github.com/OCAP2/physbridge/internal/config"
	"github.com/spf13/cobra"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	AppName = "physbridge"
)

var (
	configDir   string
	scenarioPth string
	steps       int
	commandLog  string
	upload      bool
	fromDB      bool
	sessionUUID string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           AppName,
		Short:         "rigid-body physics bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory holding "+config.FileName)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scenario and record the session",
		RunE:  runScenario,
	}
	runCmd.Flags().StringVar(&scenarioPth, "scenario", "", "scenario file (yaml)")
	runCmd.Flags().IntVar(&steps, "steps", 0, "number of steps, overrides the scenario")
	runCmd.Flags().StringVar(&commandLog, "commands", "", "write the command log (msgpack) to this file")
	runCmd.Flags().BoolVar(&upload, "upload", false, "upload the exported session to api.serverUrl")
	_ = runCmd.MarkFlagRequired("scenario")

	replayCmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "print the commands of a recorded command log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromDB {
				return replayDB(cmd.OutOrStdout(), args[0], sessionUUID)
			}
			return replay(cmd.OutOrStdout(), args[0])
		},
	}
	replayCmd.Flags().BoolVar(&fromDB, "db", false, "read the command log of a session from a SQLite dump")
	replayCmd.Flags().StringVar(&sessionUUID, "session", "", "session uuid, defaults to the latest (with --db)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", AppName, Version, BuildDate)
		},
	}

	rootCmd.AddCommand(runCmd, replayCmd, versionCmd)
	return rootCmd
}
