// Package listing renders tickets as an aligned plain-text table.
package listing

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
)

var Headers = []string{"id", "title", "owner", "priority", "status", "created_at"}

var cellStyle = lipgloss.NewStyle().PaddingRight(2)

// Render writes one table row per ticket, in the order given, followed by a
// trailing newline.
func Render(w io.Writer, tickets []storage.Ticket) error {
	rows := make([][]string, 0, len(tickets))
	for _, ticket := range tickets {
		owner := ""
		if ticket.Owner != nil {
			owner = *ticket.Owner
		}
		rows = append(rows, []string{
			strconv.FormatInt(ticket.ID, 10),
			ticket.Title,
			owner,
			ticket.Priority,
			ticket.Status,
			ticket.CreatedAt,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Headers(Headers...).
		Rows(rows...)

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return fmt.Errorf("render ticket table: %w", err)
	}
	return nil
}
