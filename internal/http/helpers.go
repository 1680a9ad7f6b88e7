package http

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"bilancio/internal/budget"
	"bilancio/internal/core"
	"bilancio/internal/format"
	"bilancio/internal/middleware/trace"
)

const (
	// requestTimeout bounds store calls made on behalf of one request.
	requestTimeout = 7 * time.Second
	maxAmountLen   = 32
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// monthParam reads ?month=. ok is false when the parameter is present but
// not a YYYY-MM month; an absent parameter yields "" and ok.
func monthParam(r *http.Request) (core.Month, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("month"))
	if raw == "" {
		return "", true
	}
	m, err := core.ParseMonth(raw)
	if err != nil {
		return "", false
	}
	return m, true
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func (s *Server) renderString(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type rowView struct {
	ID        string
	Name      string
	Kind      string
	KindLabel string
	Amount    string
	Paid      bool
	Month     string
	Editable  bool
}

type pendingView struct {
	Name   string
	Amount string
}

type summaryView struct {
	Month             string
	TotalPaid         string
	TotalSalaryIncome string
	TotalAvailable    string
	Overspent         bool
	Pending           []pendingView
	PendingCount      string
	TotalPending      string
	TotalBudgeted     string
	AvailableBudgeted string
	UpdatedAt         string
	Notice            string
}

type budgetPageView struct {
	Month     string
	MonthName string
	PrevMonth string
	NextMonth string
	State     string
	Rows      []rowView
	Summary   summaryView
	CanSave   bool
	Error     string
	UserID    string
}

type categoryView struct {
	ID        string
	Name      string
	Kind      string
	KindLabel string
}

type categoriesPageView struct {
	Categories []categoryView
	Flash      string
	Error      string
	Name       string
	Kind       string
	UserID     string
}

func newRowView(it core.BudgetLineItem, month core.Month, editable bool) rowView {
	return rowView{
		ID:        it.CategoryID,
		Name:      it.CategoryName,
		Kind:      string(it.Kind),
		KindLabel: it.Kind.Label(),
		Amount:    it.Amount,
		Paid:      it.Paid,
		Month:     month.String(),
		Editable:  editable,
	}
}

func newSummaryView(snap budget.Snapshot, money format.Formatter) summaryView {
	sum := snap.Summary
	v := summaryView{
		Month:             snap.Month.String(),
		TotalPaid:         money.Money(sum.TotalPaid),
		TotalSalaryIncome: money.Money(sum.TotalSalaryIncome),
		TotalAvailable:    money.Money(sum.TotalAvailable),
		Overspent:         sum.TotalAvailable.IsNegative(),
		PendingCount:      money.Count(len(sum.PendingItems)),
		TotalPending:      money.Money(sum.TotalPending),
		TotalBudgeted:     money.Money(sum.TotalBudgeted),
		AvailableBudgeted: money.Money(sum.AvailableBudgeted),
		Notice:            snap.Notice,
	}
	for _, it := range sum.PendingItems {
		var amount float64
		if it.Amount != nil {
			amount = *it.Amount
		}
		v.Pending = append(v.Pending, pendingView{Name: it.CategoryName, Amount: money.Amount(amount)})
	}
	if snap.UpdatedAt != nil {
		v.UpdatedAt = snap.UpdatedAt.Local().Format("2006-01-02 15:04")
	}
	return v
}

func newBudgetPageView(snap budget.Snapshot, money format.Formatter) budgetPageView {
	v := budgetPageView{
		Month:   snap.Month.String(),
		State:   snap.State.String(),
		Summary: newSummaryView(snap, money),
		CanSave: snap.CanSave(),
		UserID:  snap.UserID,
	}
	if snap.Month.Valid() {
		v.MonthName = snap.Month.Start().Format("January 2006")
		v.PrevMonth = snap.Month.Prev().String()
		v.NextMonth = snap.Month.Next().String()
	}
	editable := snap.State == budget.StateReady
	for _, it := range snap.Items {
		v.Rows = append(v.Rows, newRowView(it, snap.Month, editable))
	}
	return v
}

func newCategoryViews(cats []core.Category) []categoryView {
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryView{ID: c.ID, Name: c.Name, Kind: string(c.Kind), KindLabel: c.Kind.Label()})
	}
	return out
}

var flashMessages = map[string]string{
	"created": "Category created",
	"updated": "Category updated",
	"deleted": "Category deleted",
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}
