package storage

import (
	"database/sql"
	"time"
)

type Category struct {
	ID        string
	UserID    string
	Name      string
	Kind      string
	CreatedAt time.Time
}

type BudgetDocument struct {
	DocKey    string
	UserID    string
	Month     string
	Body      string
	UpdatedAt sql.NullTime
}
