package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/app"
)

func newAddCommand(deps commandDeps) *cobra.Command {
	var (
		req   app.AddTicketRequest
		owner string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a ticket",
		Example: "  tickets add --title \"Fix login\" --requester Ops --priority P1 --status New\n" +
			"  tickets add --title Audit --requester QA --owner Nicolas --priority P3 --status Triaged --created 2026-01-20",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("add does not accept positional arguments")
			}
			if cmd.Flags().Changed("owner") {
				req.Owner = &owner
			}
			return withRuntime(cmd.Context(), deps, cmd.ErrOrStderr(), func(ctx context.Context, env *runtimeEnv) error {
				created, err := env.tickets.Add(ctx, req)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, toTicketOutput(*created))
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintf(deps.out, "Added ticket %d\n", created.ID)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "Ticket title (required)")
	cmd.Flags().StringVar(&req.Requester, "requester", "", "Requesting team or person (required)")
	cmd.Flags().StringVar(&owner, "owner", "", "Assigned owner")
	cmd.Flags().StringVar(&req.Priority, "priority", "", "Priority label, e.g. P1 (required)")
	cmd.Flags().StringVar(&req.Status, "status", "", "Workflow status, e.g. New (required)")
	cmd.Flags().StringVar(&req.CreatedAt, "created", "", "Creation date YYYY-MM-DD (default today)")
	return cmd
}
