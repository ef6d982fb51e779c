package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/app"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/audit"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/tui"
)

var runTUIFn = tui.Run

// tuiClient adapts the ticket and activity services to the browser.
type tuiClient struct {
	tickets  *app.TicketService
	activity *audit.Service
}

func (c tuiClient) ListTickets(ctx context.Context) ([]storage.Ticket, error) {
	return c.tickets.List(ctx)
}

func (c tuiClient) ListActivity(ctx context.Context, limit int) ([]audit.RecordedEvent, error) {
	return c.activity.List(ctx, audit.Filter{Limit: limit})
}

func (c tuiClient) Export(ctx context.Context) (string, int, error) {
	result, err := c.tickets.Export(ctx)
	if err != nil {
		return "", 0, err
	}
	return result.Path, result.Rows, nil
}

func newBrowseCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse tickets and activity interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("browse does not accept positional arguments")
			}
			return withRuntime(cmd.Context(), deps, cmd.ErrOrStderr(), func(_ context.Context, env *runtimeEnv) error {
				return runTUIFn(tui.Options{
					Client: tuiClient{tickets: env.tickets, activity: env.activity},
					IsTTY:  stdoutIsTerminal,
				})
			})
		},
	}
}

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
