// Package tui is a terminal editor for one user's monthly budget.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"bilancio/internal/budget"
	"bilancio/internal/core"
	"bilancio/internal/format"
)

// loadedMsg reports the end of a month load. seq identifies the request;
// results for anything but the latest request are dropped.
type loadedMsg struct {
	seq   uint64
	month core.Month
	err   error
}

type savedMsg struct {
	err error
}

// Model is the bubbletea model for the budget editor.
type Model struct {
	ctx     context.Context
	session *budget.Session
	money   format.Formatter

	month   core.Month
	loadSeq uint64
	loading bool
	saving  bool
	snap    budget.Snapshot

	table   table.Model
	input   textinput.Model
	editing bool
	help    help.Model

	status    string
	statusErr bool
}

// New returns a model that opens month on Init.
func New(ctx context.Context, session *budget.Session, money format.Formatter, month core.Month) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Category", Width: 28},
			{Title: "Kind", Width: 8},
			{Title: "Amount", Width: 14},
			{Title: "Paid", Width: 4},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(borderCol).BorderBottom(true).Bold(true)
	ts.Selected = ts.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(primary)
	t.SetStyles(ts)

	in := textinput.New()
	in.Placeholder = "0"
	in.CharLimit = 32
	in.Width = 16

	return Model{
		ctx:     ctx,
		session: session,
		money:   money,
		month:   month,
		loadSeq: 1,
		loading: true,
		table:   t,
		input:   in,
		help:    help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.loadCmd(m.loadSeq, m.month)
}

func (m Model) loadCmd(seq uint64, month core.Month) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return loadedMsg{seq: seq, month: month, err: session.Load(ctx, month)}
	}
}

func (m Model) saveCmd() tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return savedMsg{err: session.Save(ctx)}
	}
}

func (m Model) switchMonth(month core.Month) (Model, tea.Cmd) {
	m.loadSeq++
	m.month = month
	m.loading = true
	m.editing = false
	m.input.Blur()
	m.setStatus("", false)
	return m, m.loadCmd(m.loadSeq, month)
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

// refresh pulls the session state into the view, keeping the cursor.
func (m *Model) refresh() {
	m.snap = m.session.Snapshot()
	rows := make([]table.Row, 0, len(m.snap.Items))
	for _, it := range m.snap.Items {
		amount := it.Amount
		if amount == "" {
			amount = "-"
		}
		paid := ""
		if it.Paid {
			paid = "✓"
		}
		rows = append(rows, table.Row{it.CategoryName, it.Kind.Label(), amount, paid})
	}
	cursor := m.table.Cursor()
	m.table.SetRows(rows)
	if cursor >= len(rows) {
		cursor = len(rows) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	m.table.SetCursor(cursor)
}

func (m Model) selected() (core.BudgetLineItem, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.snap.Items) {
		return core.BudgetLineItem{}, false
	}
	return m.snap.Items[i], true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h := msg.Height - 18
		if h < 3 {
			h = 3
		}
		m.table.SetHeight(h)
		m.help.Width = msg.Width
		return m, nil

	case loadedMsg:
		if msg.seq != m.loadSeq {
			return m, nil
		}
		m.loading = false
		m.refresh()
		switch {
		case msg.err != nil && !errors.Is(msg.err, budget.ErrStaleLoad):
			m.setStatus("Load failed: "+msg.err.Error(), true)
		case m.snap.Notice != "":
			m.setStatus(m.snap.Notice, true)
		}
		return m, nil

	case savedMsg:
		m.saving = false
		m.refresh()
		if msg.err != nil {
			m.setStatus("Save failed: "+msg.err.Error(), true)
		} else {
			m.setStatus("Saved", false)
		}
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		m.editing = false
		m.input.Blur()
		return m, nil
	case key.Matches(msg, keys.Confirm):
		m.editing = false
		m.input.Blur()
		if it, ok := m.selected(); ok {
			if err := m.session.SetAmount(it.CategoryID, strings.TrimSpace(m.input.Value())); err != nil {
				m.setStatus(err.Error(), true)
			}
		}
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.PrevMonth):
		return m.switchMonth(m.month.Prev())
	case key.Matches(msg, keys.NextMonth):
		return m.switchMonth(m.month.Next())
	case key.Matches(msg, keys.Save):
		if m.saving || !m.snap.CanSave() {
			m.setStatus("Nothing to save right now", true)
			return m, nil
		}
		m.saving = true
		m.setStatus("Saving…", false)
		return m, m.saveCmd()
	case key.Matches(msg, keys.Edit):
		it, ok := m.selected()
		if !ok || m.loading || m.saving {
			return m, nil
		}
		m.editing = true
		m.input.SetValue(it.Amount)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case key.Matches(msg, keys.TogglePaid):
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.session.SetPaid(it.CategoryID, !it.Paid); err != nil {
			m.setStatus(err.Error(), true)
		}
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder

	title := "Budget · " + m.month.Start().Format("January 2006")
	if m.loading {
		title += mutedStyle.Render("  loading…")
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	if len(m.snap.Items) == 0 && !m.loading {
		b.WriteString(mutedStyle.Render("No categories yet. Add some with bilancioctl categories add."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	if m.editing {
		if it, ok := m.selected(); ok {
			fmt.Fprintf(&b, "\nAmount for %s: %s\n", it.CategoryName, m.input.View())
		}
	}

	b.WriteString(summaryStyle.Render(m.summaryView()))
	b.WriteString("\n")

	if m.status != "" {
		style := statusStyle
		if m.statusErr {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}

	if m.editing {
		b.WriteString(m.help.View(editKeys{}))
	} else {
		b.WriteString(m.help.View(keys))
	}
	return appStyle.Render(b.String())
}

// summaryView renders the frozen summary: it changes on load and save only.
func (m Model) summaryView() string {
	sum := m.snap.Summary
	line := func(label, value string) string {
		return labelStyle.Render(label) + value + "\n"
	}
	available := positiveStyle.Render(m.money.Money(sum.TotalAvailable))
	if sum.TotalAvailable.IsNegative() {
		available = negativeStyle.Render(m.money.Money(sum.TotalAvailable))
	}

	var b strings.Builder
	b.WriteString(line("Salary income", m.money.Money(sum.TotalSalaryIncome)))
	b.WriteString(line("Paid", m.money.Money(sum.TotalPaid)))
	b.WriteString(line("Available", available))
	b.WriteString(line("Pending ("+m.money.Count(len(sum.PendingItems))+")", m.money.Money(sum.TotalPending)))
	b.WriteString(line("Available after budget", m.money.Money(sum.AvailableBudgeted)))
	if m.snap.UpdatedAt != nil {
		b.WriteString(mutedStyle.Render("Last saved " + m.snap.UpdatedAt.Local().Format("2006-01-02 15:04")))
	} else {
		b.WriteString(mutedStyle.Render("Not saved yet"))
	}
	if m.snap.Notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.snap.Notice))
	}
	return b.String()
}

// Snapshot exposes the state the view is rendering.
func (m Model) Snapshot() budget.Snapshot {
	return m.snap
}

// Month is the month being shown or loaded.
func (m Model) Month() core.Month {
	return m.month
}
