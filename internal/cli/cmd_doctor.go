package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/audit"
	debugpkg "github.com/Nicolasg7777/TicketWorkflowTracker/internal/debug"
)

// collectDiagnostics never returns an error: every failure, including an
// unreadable config or store, is recorded as a failing check.
func collectDiagnostics(ctx context.Context, deps commandDeps) debugpkg.Bundle {
	if ctx == nil {
		ctx = context.Background()
	}
	bundle := debugpkg.NewBundle(deps.clock.Now())
	bundle.Version = map[string]any{
		"version":    deps.build.Version,
		"commit":     deps.build.Commit,
		"build_time": deps.build.BuildTime,
	}

	cfg, err := loadConfigFn(loadOptions(deps))
	bundle.AddCheck("config", err, "loaded")
	if err != nil {
		return bundle
	}
	bundle.Config = map[string]any{
		"db_path":     cfg.Storage.DBPath,
		"report_path": cfg.Report.Path,
		"log_level":   cfg.Logging.Level,
		"log_file":    cfg.Logging.File,
	}

	store, err := openStoreFn(cfg.Storage.DBPath)
	bundle.AddCheck("store", err, cfg.Storage.DBPath)
	if err == nil {
		defer func() { _ = store.Close() }()
		activity, err := audit.NewService(ctx, store.Audit)
		if err != nil {
			bundle.AddCheck("activity", err, "")
		} else {
			bundle.InspectStore(ctx, store, activity)
		}
	}

	bundle.CheckReportDir(cfg.Report.Path)
	return bundle
}

func newDoctorCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run local configuration, storage, and activity log checks",
		Example: "  tickets doctor\n" +
			"  tickets --json doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("doctor does not accept positional arguments")
			}

			bundle := collectDiagnostics(cmd.Context(), deps)
			if deps.globals.JSON {
				if err := printJSON(deps.out, map[string]any{"checks": bundle.Checks}); err != nil {
					return mapCommandError(err)
				}
			} else if !deps.globals.Quiet {
				if err := printChecks(deps.out, bundle.Checks); err != nil {
					return mapCommandError(err)
				}
			}

			if !bundle.Healthy() {
				return asExitError(ExitCodeGeneric, fmt.Errorf("doctor: one or more checks failed"))
			}
			return nil
		},
	}
}

func newDebugCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "debug",
		Short:   "Diagnostics helpers",
		Example: "  tickets debug bundle --output ./tickets-debug.json",
	}
	cmd.AddCommand(newDebugBundleCommand(deps))
	return cmd
}

func newDebugBundleCommand(deps commandDeps) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Collect sanitized diagnostics into a JSON bundle",
		Example: "  tickets debug bundle --output ./tickets-debug.json\n" +
			"  tickets --json debug bundle --output ./tickets-debug.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("debug bundle does not accept positional arguments")
			}
			if strings.TrimSpace(outputPath) == "" {
				return usageErrorf("debug bundle requires --output")
			}

			bundle := collectDiagnostics(cmd.Context(), deps)
			if err := debugpkg.WriteBundle(outputPath, bundle); err != nil {
				return mapCommandError(err)
			}
			if deps.globals.JSON {
				return mapCommandError(printJSON(deps.out, map[string]any{"output": outputPath}))
			}
			if deps.globals.Quiet {
				return nil
			}
			_, err := fmt.Fprintf(deps.out, "debug bundle written: %s\n", outputPath)
			return mapCommandError(err)
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Output JSON bundle path")
	return cmd
}

func printChecks(w io.Writer, checks []debugpkg.Check) error {
	for _, check := range checks {
		state := "ok"
		if !check.OK {
			state = "fail"
		}
		if _, err := fmt.Fprintf(w, "%s: %s (%s)\n", check.Name, state, check.Message); err != nil {
			return err
		}
	}
	return nil
}
