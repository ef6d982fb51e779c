package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/clock"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type GlobalOptions struct {
	ConfigPath string
	DBPath     string
	ReportPath string
	LogLevel   string
	JSON       bool
	Quiet      bool
}

type commandDeps struct {
	out     io.Writer
	build   BuildInfo
	globals *GlobalOptions
	clock   clock.Clock
	// env replaces the process environment for config lookups when non-nil.
	env map[string]string
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	return newRootCommand(commandDeps{
		out:   out,
		build: build,
		clock: clock.NewSystem(),
	})
}

func newRootCommand(deps commandDeps) *cobra.Command {
	globals := &GlobalOptions{}
	deps.globals = globals

	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Track support tickets and export the weekly status report",
		Long: "tickets keeps support tickets in a local SQLite database, lists them\n" +
			"by priority, and exports a weekly status CSV with ticket aging.",
		Example: "  tickets seed\n" +
			"  tickets list\n" +
			"  tickets export",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return usageErrorf("a command is required (seed, list, export, add, activity)")
		},
	}
	cmd.SetOut(deps.out)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&globals.ConfigPath, "config", "", "Path to a TOML config file (default tickets.toml if present)")
	flags.StringVar(&globals.DBPath, "db", "", "SQLite database path (default out/tickets.db)")
	flags.StringVar(&globals.ReportPath, "out", "", "Weekly status report path (default out/weekly_status.csv)")
	flags.StringVar(&globals.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&globals.JSON, "json", false, "Print machine-readable JSON")
	flags.BoolVar(&globals.Quiet, "quiet", false, "Suppress non-essential output")

	cmd.AddCommand(
		newSeedCommand(deps),
		newListCommand(deps),
		newExportCommand(deps),
		newAddCommand(deps),
		newActivityCommand(deps),
		newBrowseCommand(deps),
		newDoctorCommand(deps),
		newDebugCommand(deps),
		newVersionCommand(deps),
	)
	cmd.InitDefaultCompletionCmd()
	return cmd
}
