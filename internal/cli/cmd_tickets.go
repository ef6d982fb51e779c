package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/listing"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
)

type ticketOutput struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	Requester string  `json:"requester"`
	Owner     *string `json:"owner"`
	Priority  string  `json:"priority"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

func toTicketOutput(ticket storage.Ticket) ticketOutput {
	return ticketOutput{
		ID:        ticket.ID,
		Title:     ticket.Title,
		Requester: ticket.Requester,
		Owner:     ticket.Owner,
		Priority:  ticket.Priority,
		Status:    ticket.Status,
		CreatedAt: ticket.CreatedAt,
	}
}

func toTicketOutputs(tickets []storage.Ticket) []ticketOutput {
	out := make([]ticketOutput, 0, len(tickets))
	for _, ticket := range tickets {
		out = append(out, toTicketOutput(ticket))
	}
	return out
}

func newSeedCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace all tickets with the sample data set",
		Long: "seed deletes every ticket and inserts the three sample tickets in one\n" +
			"transaction. It prints nothing unless --json is set.",
		Example: "  tickets seed\n" +
			"  tickets --db /tmp/tickets.db seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("seed does not accept positional arguments")
			}
			return withRuntime(cmd.Context(), deps, cmd.ErrOrStderr(), func(ctx context.Context, env *runtimeEnv) error {
				result, err := env.tickets.Seed(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, toTicketOutputs(result.Tickets))
				}
				return nil
			})
		},
	}
}

func newListCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tickets ordered by priority, then id",
		Example: "  tickets list\n" +
			"  tickets --json list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("list does not accept positional arguments")
			}
			return withRuntime(cmd.Context(), deps, cmd.ErrOrStderr(), func(ctx context.Context, env *runtimeEnv) error {
				tickets, err := env.tickets.List(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, toTicketOutputs(tickets))
				}
				return listing.Render(deps.out, tickets)
			})
		},
	}
}

func newExportCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the weekly status CSV",
		Long: "export writes every ticket plus its age in days to the weekly status\n" +
			"report, replacing any previous file. Nothing is written if a ticket\n" +
			"has a malformed created_at date.",
		Example: "  tickets export\n" +
			"  tickets --out reports/week.csv export",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("export does not accept positional arguments")
			}
			return withRuntime(cmd.Context(), deps, cmd.ErrOrStderr(), func(ctx context.Context, env *runtimeEnv) error {
				result, err := env.tickets.Export(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, result)
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintf(deps.out, "Wrote %s\n", result.Path)
				return err
			})
		},
	}
}
