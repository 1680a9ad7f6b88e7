// Package memory is an in-process budget mirror. The worker uses it as a
// dry run when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/ports"
	"bilancio/internal/sheets"
)

type Mirror struct {
	mu         sync.Mutex
	prefix     string
	summarizer core.Summarizer
	logger     *log.Logger
	tabs       map[string][][]any
	writes     int
}

var _ ports.BudgetMirror = (*Mirror)(nil)

func New(prefix string, summarizer core.Summarizer, logger *log.Logger) *Mirror {
	if logger == nil {
		logger = log.Discard()
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = sheets.DefaultSheetPrefix
	}
	return &Mirror{
		prefix:     prefix,
		summarizer: summarizer,
		logger:     logger.WithComponent(log.ComponentSheets),
		tabs:       make(map[string][][]any),
	}
}

// WriteBudget replaces the month's tab with the rows for doc.
func (m *Mirror) WriteBudget(ctx context.Context, doc core.BudgetDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !doc.Month.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidMonth, doc.Month)
	}
	name := sheets.SheetName(m.prefix, doc.Month)
	rows := sheets.BudgetRows(doc, m.summarizer)

	m.mu.Lock()
	m.tabs[name] = rows
	m.writes++
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "Budget mirrored in memory",
		log.FieldSheet, name,
		log.FieldUserID, doc.UserID,
		log.FieldItems, len(doc.Items))
	return nil
}

// Rows returns a copy of the tab for month.
func (m *Mirror) Rows(month core.Month) ([][]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tabs[sheets.SheetName(m.prefix, month)]
	if !ok {
		return nil, false
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = append([]any(nil), r...)
	}
	return out, true
}

// Sheets lists the tab titles written so far, sorted.
func (m *Mirror) Sheets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.tabs))
	for name := range m.tabs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Writes counts successful WriteBudget calls.
func (m *Mirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
