package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/audit"
)

func newActivityCommand(deps commandDeps) *cobra.Command {
	var (
		action string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the hash-chained activity log",
		Example: "  tickets activity --limit 20\n" +
			"  tickets activity --action report.export\n" +
			"  tickets activity verify",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("activity does not accept positional arguments")
			}
			if limit < 0 {
				return usageErrorf("activity --limit must be >= 0")
			}
			return withRuntime(cmd.Context(), deps, cmd.ErrOrStderr(), func(ctx context.Context, env *runtimeEnv) error {
				events, err := env.activity.List(ctx, audit.Filter{Action: action, Limit: limit})
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, events)
				}
				if deps.globals.Quiet {
					return nil
				}
				for _, event := range events {
					if _, err := fmt.Fprintf(
						deps.out,
						"%s %s action=%s target=%s/%s result=%s\n",
						event.Timestamp.Format(time.RFC3339),
						event.ID,
						event.Action,
						event.TargetType,
						event.TargetID,
						event.Result,
					); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "Only show events with this action")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of events")
	cmd.AddCommand(newActivityVerifyCommand(deps))
	return cmd
}

func newActivityVerifyCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify activity hash chain integrity",
		Example: "  tickets activity verify\n" +
			"  tickets --json activity verify",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("activity verify does not accept positional arguments")
			}
			return withRuntime(cmd.Context(), deps, cmd.ErrOrStderr(), func(ctx context.Context, env *runtimeEnv) error {
				result, err := env.activity.Verify(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					if err := printJSON(deps.out, result); err != nil {
						return err
					}
				} else if !deps.globals.Quiet {
					if _, err := fmt.Fprintf(deps.out, "valid=%t events=%d tip=%s\n", result.Valid, result.EventCount, result.ChainTip); err != nil {
						return err
					}
				}
				if !result.Valid {
					return fmt.Errorf("activity chain invalid: %s", result.Error)
				}
				return nil
			})
		},
	}
}
