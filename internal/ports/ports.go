// Package ports declares the outbound interfaces the budget session depends
// on. Backends in internal/storage and internal/sheets implement them.
package ports

import (
	"context"
	"errors"

	"bilancio/internal/core"
)

// ErrCategoryNotFound is returned by Update and Delete for unknown ids.
var ErrCategoryNotFound = errors.New("category not found")

type (
	// CategoryDirectory is the per-user list of budget categories. List
	// orders expenses before incomes, then by name.
	CategoryDirectory interface {
		List(ctx context.Context, userID string) ([]core.Category, error)
		Create(ctx context.Context, userID, name string, kind core.Kind) (core.Category, error)
		Update(ctx context.Context, id, name string, kind core.Kind) error
		Delete(ctx context.Context, id string) error
		// Subscribe registers onChange for every change to userID's
		// categories. No callback is delivered once cancel has returned.
		Subscribe(userID string, onChange func()) (cancel func())
	}

	// DocumentStore persists one budget document per key, with full
	// overwrite semantics.
	DocumentStore interface {
		// Get reports found=false, with a nil error, for a missing key.
		Get(ctx context.Context, key string) (doc core.BudgetDocument, found bool, err error)
		Set(ctx context.Context, key string, doc core.BudgetDocument) error
	}

	// MonthLister enumerates the months with a stored document for a user,
	// newest first.
	MonthLister interface {
		Months(ctx context.Context, userID string) ([]core.Month, error)
	}

	// BudgetMirror copies a saved document somewhere humans look at it.
	BudgetMirror interface {
		WriteBudget(ctx context.Context, doc core.BudgetDocument) error
	}
)
