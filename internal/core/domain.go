package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

type (
	// Kind classifies a category as money going out or coming in.
	Kind string

	Category struct {
		ID     string
		UserID string
		Name   string
		Kind   Kind
	}

	// BudgetLineItem is one category's row in the edit buffer. Amount stays
	// text while editing so a blank cell is distinct from zero.
	BudgetLineItem struct {
		CategoryID   string
		CategoryName string
		Kind         Kind
		Amount       string
		Paid         bool
	}

	// SavedItem is the persisted form of a line item. A nil Amount means the
	// stored document carried no value for it.
	SavedItem struct {
		CategoryID   string   `json:"categoryId"`
		CategoryName string   `json:"categoryName"`
		Kind         Kind     `json:"kind"`
		Amount       *float64 `json:"amount"`
		Paid         bool     `json:"paid"`
	}

	BudgetDocument struct {
		UserID    string      `json:"userId"`
		Month     Month       `json:"month"`
		Items     []SavedItem `json:"items"`
		UpdatedAt *time.Time  `json:"updatedAt,omitempty"`
	}
)

const maxNameLength = 100

var (
	ErrInvalidKind  = errors.New("invalid category kind")
	ErrEmptyName    = errors.New("empty category name")
	ErrNameTooLong  = errors.New("category name too long (max 100 characters)")
	ErrEmptyUserID  = errors.New("empty user id")
	ErrInvalidMonth = errors.New("invalid month")
)

// ParseKind accepts the canonical values and the legacy Spanish ones written
// by older clients, in any casing.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "gasto":
		return KindExpense, nil
	case "income", "ingreso":
		return KindIncome, nil
	}
	return "", ErrInvalidKind
}

// NormalizeKind is the lenient form of ParseKind: unknown values are expenses.
func NormalizeKind(s string) Kind {
	k, err := ParseKind(s)
	if err != nil {
		return KindExpense
	}
	return k
}

func (k Kind) String() string {
	return string(k)
}

// Label is the human readable form used by the UIs.
func (k Kind) Label() string {
	if k == KindIncome {
		return "Income"
	}
	return "Expense"
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*k = NormalizeKind(s)
	return nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	return nil
}

// Value returns the stored amount, zero when it is absent.
func (it SavedItem) Value() Money {
	if it.Amount == nil {
		return Money{}
	}
	return MoneyFromFloat(*it.Amount)
}

// DocumentKey is the store key of the budget document for a user and month.
func DocumentKey(userID string, m Month) string {
	return userID + "_" + m.String()
}
