// Package sheets holds the tab layout shared by the budget mirrors.
package sheets

import (
	"strings"
	"time"

	"bilancio/internal/core"
)

// DefaultSheetPrefix names the monthly tabs: "Budget 2025-03".
const DefaultSheetPrefix = "Budget"

var header = []any{"Category", "Kind", "Amount", "Paid"}

// SheetName is the tab title for month.
func SheetName(prefix string, month core.Month) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultSheetPrefix
	}
	return prefix + " " + month.String()
}

// A1Range quotes title for A1 notation and appends cells ("A1", "A:Z").
// Apostrophes inside the title are doubled.
func A1Range(title, cells string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + cells
}

// BudgetRows lays out doc as sheet rows: a header, one row per item, a blank
// separator and the summary figures. Amounts are numbers so the sheet can
// compute with them.
func BudgetRows(doc core.BudgetDocument, s core.Summarizer) [][]any {
	rows := make([][]any, 0, len(doc.Items)+9)
	rows = append(rows, header)
	for _, it := range doc.Items {
		rows = append(rows, []any{
			it.CategoryName,
			core.NormalizeKind(string(it.Kind)).Label(),
			it.Value().Float(),
			it.Paid,
		})
	}

	sum := s.Summarize(doc.Items)
	rows = append(rows,
		[]any{},
		[]any{"Total paid", "", sum.TotalPaid.Float()},
		[]any{"Salary income", "", sum.TotalSalaryIncome.Float()},
		[]any{"Available", "", sum.TotalAvailable.Float()},
		[]any{"Pending", "", sum.TotalPending.Float()},
		[]any{"Budgeted", "", sum.TotalBudgeted.Float()},
	)
	if doc.UpdatedAt != nil {
		rows = append(rows, []any{"Updated at", "", doc.UpdatedAt.UTC().Format(time.RFC3339)})
	}
	return rows
}
