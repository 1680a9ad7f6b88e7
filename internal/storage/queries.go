package storage

import (
	"context"
	"database/sql"
)

const listCategories = `-- name: ListCategories :many
SELECT id, user_id, name, kind, created_at FROM categories
WHERE user_id = ?
ORDER BY CASE kind WHEN 'expense' THEN 0 ELSE 1 END, name, created_at, id
`

func (q *Queries) ListCategories(ctx context.Context, userID string) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Name,
			&i.Kind,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCategory = `-- name: GetCategory :one
SELECT id, user_id, name, kind, created_at FROM categories
WHERE id = ?
`

func (q *Queries) GetCategory(ctx context.Context, id string) (Category, error) {
	row := q.db.QueryRowContext(ctx, getCategory, id)
	var i Category
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Name,
		&i.Kind,
		&i.CreatedAt,
	)
	return i, err
}

const createCategory = `-- name: CreateCategory :exec
INSERT INTO categories (id, user_id, name, kind, created_at)
VALUES (?, ?, ?, ?, ?)
`

type CreateCategoryParams struct {
	ID        string
	UserID    string
	Name      string
	Kind      string
	CreatedAt sql.NullTime
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) error {
	_, err := q.db.ExecContext(ctx, createCategory,
		arg.ID,
		arg.UserID,
		arg.Name,
		arg.Kind,
		arg.CreatedAt,
	)
	return err
}

const updateCategory = `-- name: UpdateCategory :execrows
UPDATE categories SET name = ?, kind = ?
WHERE id = ?
`

type UpdateCategoryParams struct {
	Name string
	Kind string
	ID   string
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateCategory, arg.Name, arg.Kind, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteCategory = `-- name: DeleteCategory :execrows
DELETE FROM categories
WHERE id = ?
`

func (q *Queries) DeleteCategory(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countCategories = `-- name: CountCategories :one
SELECT COUNT(*) FROM categories
WHERE user_id = ?
`

func (q *Queries) CountCategories(ctx context.Context, userID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countCategories, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getBudgetDocument = `-- name: GetBudgetDocument :one
SELECT doc_key, user_id, month, body, updated_at FROM budget_documents
WHERE doc_key = ?
`

func (q *Queries) GetBudgetDocument(ctx context.Context, docKey string) (BudgetDocument, error) {
	row := q.db.QueryRowContext(ctx, getBudgetDocument, docKey)
	var i BudgetDocument
	err := row.Scan(
		&i.DocKey,
		&i.UserID,
		&i.Month,
		&i.Body,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertBudgetDocument = `-- name: UpsertBudgetDocument :exec
INSERT INTO budget_documents (doc_key, user_id, month, body, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(doc_key) DO UPDATE SET
    user_id = excluded.user_id,
    month = excluded.month,
    body = excluded.body,
    updated_at = excluded.updated_at
`

type UpsertBudgetDocumentParams struct {
	DocKey    string
	UserID    string
	Month     string
	Body      string
	UpdatedAt sql.NullTime
}

func (q *Queries) UpsertBudgetDocument(ctx context.Context, arg UpsertBudgetDocumentParams) error {
	_, err := q.db.ExecContext(ctx, upsertBudgetDocument,
		arg.DocKey,
		arg.UserID,
		arg.Month,
		arg.Body,
		arg.UpdatedAt,
	)
	return err
}

const listBudgetMonths = `-- name: ListBudgetMonths :many
SELECT month FROM budget_documents
WHERE user_id = ?
ORDER BY month DESC
`

func (q *Queries) ListBudgetMonths(ctx context.Context, userID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetMonths, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var month string
		if err := rows.Scan(&month); err != nil {
			return nil, err
		}
		items = append(items, month)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
