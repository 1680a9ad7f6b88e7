package core

import (
	"strings"

	"golang.org/x/text/cases"
)

// DefaultSalaryKeyword marks the income categories that fund the available
// balance.
const DefaultSalaryKeyword = "salary"

// BudgetSummary holds the figures derived from a saved item list.
type BudgetSummary struct {
	TotalPaid         Money
	TotalSalaryIncome Money
	// TotalAvailable is salary income minus paid expenses; negative means
	// overspending.
	TotalAvailable Money
	PendingItems   []SavedItem
	TotalPending   Money
	// TotalBudgeted sums every expense, paid or not.
	TotalBudgeted Money
	// AvailableBudgeted is salary income minus everything budgeted.
	AvailableBudgeted Money
}

// SalaryMatcher decides which income categories count as salary by a case
// folded substring match on the category name.
type SalaryMatcher struct {
	keywords []string
}

// NewSalaryMatcher builds a matcher for the given keywords. Blank keywords are
// ignored; with none left it falls back to DefaultSalaryKeyword.
func NewSalaryMatcher(keywords ...string) SalaryMatcher {
	var folded []string
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		folded = append(folded, fold(k))
	}
	if len(folded) == 0 {
		folded = []string{fold(DefaultSalaryKeyword)}
	}
	return SalaryMatcher{keywords: folded}
}

func (m SalaryMatcher) Match(name string) bool {
	keywords := m.keywords
	if len(keywords) == 0 {
		keywords = []string{DefaultSalaryKeyword}
	}
	name = fold(name)
	for _, k := range keywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

// Keywords returns the folded keywords in use.
func (m SalaryMatcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

// A cases.Caser keeps state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Summarizer computes budget summaries. The zero value matches "salary".
type Summarizer struct {
	Salary SalaryMatcher
}

// Summarize computes the summary with the default salary rule.
func Summarize(items []SavedItem) BudgetSummary {
	return Summarizer{}.Summarize(items)
}

func (s Summarizer) Summarize(items []SavedItem) BudgetSummary {
	sum := BudgetSummary{PendingItems: []SavedItem{}}
	for _, it := range items {
		amount := it.Value()
		switch NormalizeKind(string(it.Kind)) {
		case KindExpense:
			sum.TotalBudgeted = sum.TotalBudgeted.Add(amount)
			if it.Paid {
				sum.TotalPaid = sum.TotalPaid.Add(amount)
			} else {
				sum.PendingItems = append(sum.PendingItems, it)
				sum.TotalPending = sum.TotalPending.Add(amount)
			}
		case KindIncome:
			if s.Salary.Match(it.CategoryName) {
				sum.TotalSalaryIncome = sum.TotalSalaryIncome.Add(amount)
			}
		}
	}
	sum.TotalAvailable = sum.TotalSalaryIncome.Sub(sum.TotalPaid)
	sum.AvailableBudgeted = sum.TotalSalaryIncome.Sub(sum.TotalBudgeted)
	return sum
}
