// Package tui is the interactive ticket browser behind `tickets browse`.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/audit"
	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/storage"
)

type Screen string

const (
	ScreenTickets      Screen = "tickets"
	ScreenTicketDetail Screen = "ticket_detail"
	ScreenActivity     Screen = "activity"
)

const activityLimit = 200

type Client interface {
	ListTickets(ctx context.Context) ([]storage.Ticket, error)
	ListActivity(ctx context.Context, limit int) ([]audit.RecordedEvent, error)
	Export(ctx context.Context) (path string, rows int, err error)
}

type Options struct {
	Client Client
	IsTTY  func() bool
}

type Model struct {
	client Client

	screen   Screen
	previous Screen
	err      string
	status   string

	ticketsList  list.Model
	activityList list.Model

	ticketsByID map[int64]storage.Ticket
	selectedID  int64
}

type loadedMsg struct {
	tickets  []storage.Ticket
	activity []audit.RecordedEvent
	err      error
}

type exportedMsg struct {
	path string
	rows int
	err  error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func Run(opts Options) error {
	if opts.IsTTY != nil && !opts.IsTTY() {
		return fmt.Errorf("tui: requires a tty")
	}
	_, err := tea.NewProgram(NewModel(opts)).Run()
	return err
}

func NewModel(opts Options) Model {
	delegate := list.NewDefaultDelegate()

	ticketsList := list.New([]list.Item{}, delegate, 0, 0)
	ticketsList.Title = "Tickets"
	ticketsList.SetShowStatusBar(false)
	ticketsList.SetFilteringEnabled(true)
	ticketsList.SetShowHelp(false)
	ticketsList.SetSize(80, 20)

	activityList := list.New([]list.Item{}, delegate, 0, 0)
	activityList.Title = "Activity"
	activityList.SetShowStatusBar(false)
	activityList.SetFilteringEnabled(true)
	activityList.SetShowHelp(false)
	activityList.SetSize(80, 20)

	return Model{
		client:       opts.Client,
		screen:       ScreenTickets,
		ticketsList:  ticketsList,
		activityList: activityList,
		ticketsByID:  map[int64]storage.Ticket{},
	}
}

func (m Model) Init() tea.Cmd {
	if m.client == nil {
		return nil
	}
	return m.loadDataCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if m.filtering() {
			break
		}
		switch typed.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "t":
			m.screen = ScreenTickets
			return m, nil
		case "a":
			m.screen = ScreenActivity
			return m, nil
		case "r":
			m.status = ""
			return m, m.loadDataCmd()
		case "e":
			m.status = "exporting..."
			return m, m.exportCmd()
		case "enter":
			if m.screen == ScreenTickets {
				item, ok := m.ticketsList.SelectedItem().(ticketItem)
				if !ok {
					return m, nil
				}
				m.selectedID = item.id
				m.previous = ScreenTickets
				m.screen = ScreenTicketDetail
				return m, nil
			}
		case "esc":
			if m.screen == ScreenTicketDetail {
				m.screen = m.previous
				if m.screen == "" {
					m.screen = ScreenTickets
				}
				return m, nil
			}
		}
	case tea.WindowSizeMsg:
		height := typed.Height - 4
		if height < 1 {
			height = 1
		}
		m.ticketsList.SetSize(typed.Width, height)
		m.activityList.SetSize(typed.Width, height)
	case loadedMsg:
		if typed.err != nil {
			m.err = typed.err.Error()
			return m, nil
		}
		m.err = ""
		m.populateLists(typed.tickets, typed.activity)
		return m, nil
	case exportedMsg:
		if typed.err != nil {
			m.status = ""
			m.err = typed.err.Error()
			// A failed export is still recorded in the activity log.
			return m, m.loadDataCmd()
		}
		m.err = ""
		m.status = fmt.Sprintf("Wrote %s (%d rows)", typed.path, typed.rows)
		return m, m.loadDataCmd()
	}

	var cmd tea.Cmd
	switch m.screen {
	case ScreenActivity:
		m.activityList, cmd = m.activityList.Update(msg)
	case ScreenTickets:
		m.ticketsList, cmd = m.ticketsList.Update(msg)
	}
	return m, cmd
}

func (m Model) View() string {
	header := "[t] Tickets  [a] Activity  [e] Export  [r] Reload  [q] Quit\n"
	if m.err != "" {
		header += errorStyle.Render("Error: "+m.err) + "\n"
	}
	if m.status != "" {
		header += statusStyle.Render(m.status) + "\n"
	}

	switch m.screen {
	case ScreenTicketDetail:
		return header + "\n" + m.renderTicketDetailView()
	case ScreenActivity:
		if len(m.activityList.Items()) == 0 {
			return header + "\n" + renderEmptyState("No activity yet.", "Seed, add, or export tickets to record events.")
		}
		return header + "\n" + m.activityList.View()
	default:
		if len(m.ticketsList.Items()) == 0 {
			return header + "\n" + renderEmptyState("No tickets yet.", "Run `tickets seed` or `tickets add ...` first.")
		}
		return header + "\n" + m.ticketsList.View()
	}
}

func renderEmptyState(title, guidance string) string {
	return title + "\n" + guidance
}

func (m Model) filtering() bool {
	switch m.screen {
	case ScreenTickets:
		return m.ticketsList.FilterState() == list.Filtering
	case ScreenActivity:
		return m.activityList.FilterState() == list.Filtering
	}
	return false
}

func (m Model) loadDataCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		return loadData(client)
	}
}

func loadData(client Client) tea.Msg {
	if client == nil {
		return loadedMsg{err: fmt.Errorf("tui: client is nil")}
	}
	tickets, err := client.ListTickets(context.Background())
	if err != nil {
		return loadedMsg{err: err}
	}
	activity, err := client.ListActivity(context.Background(), activityLimit)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{tickets: tickets, activity: activity}
}

func (m Model) exportCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if client == nil {
			return exportedMsg{err: fmt.Errorf("tui: client is nil")}
		}
		path, rows, err := client.Export(context.Background())
		return exportedMsg{path: path, rows: rows, err: err}
	}
}

func (m *Model) populateLists(tickets []storage.Ticket, activity []audit.RecordedEvent) {
	ticketItems := make([]list.Item, 0, len(tickets))
	byID := make(map[int64]storage.Ticket, len(tickets))
	for _, ticket := range tickets {
		ticketItems = append(ticketItems, ticketItem{
			id:    ticket.ID,
			title: fmt.Sprintf("#%d %s", ticket.ID, ticket.Title),
			description: fmt.Sprintf("%s  %s  owner=%s  created=%s",
				ticket.Priority, ticket.Status, ownerOf(ticket), ticket.CreatedAt),
		})
		byID[ticket.ID] = ticket
	}
	m.ticketsByID = byID
	m.ticketsList.SetItems(ticketItems)

	// Newest first reads better interactively.
	activityItems := make([]list.Item, 0, len(activity))
	for i := len(activity) - 1; i >= 0; i-- {
		event := activity[i]
		activityItems = append(activityItems, activityItem{
			title: fmt.Sprintf("%s %s", event.Action, event.Result),
			description: fmt.Sprintf("%s  target=%s/%s",
				event.Timestamp.Format(time.RFC3339), event.TargetType, event.TargetID),
		})
	}
	m.activityList.SetItems(activityItems)
}

func (m Model) renderTicketDetailView() string {
	ticket, ok := m.ticketsByID[m.selectedID]
	if !ok {
		return "Ticket detail unavailable"
	}
	return fmt.Sprintf(
		"%s\n\nTitle: %s\nRequester: %s\nOwner: %s\nPriority: %s\nStatus: %s\nCreated: %s\n\nPress ESC to go back.",
		titleStyle.Render("Ticket "+strconv.FormatInt(ticket.ID, 10)),
		ticket.Title,
		ticket.Requester,
		ownerOf(ticket),
		ticket.Priority,
		ticket.Status,
		ticket.CreatedAt,
	)
}

func ownerOf(ticket storage.Ticket) string {
	if ticket.Owner == nil {
		return "-"
	}
	return *ticket.Owner
}

type ticketItem struct {
	id          int64
	title       string
	description string
}

func (i ticketItem) Title() string       { return i.title }
func (i ticketItem) Description() string { return i.description }
func (i ticketItem) FilterValue() string { return i.title + " " + i.description }

type activityItem struct {
	title       string
	description string
}

func (i activityItem) Title() string       { return i.title }
func (i activityItem) Description() string { return i.description }
func (i activityItem) FilterValue() string { return i.title + " " + i.description }
