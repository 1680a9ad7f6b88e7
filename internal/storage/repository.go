// Package storage is the SQLite backend. It implements both the category
// directory and the budget document store on top of sqlc-style queries.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/ports"
	"bilancio/internal/watch"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	changes *watch.Broker[string]
	logger  *log.Logger
	now     func() time.Time
}

var (
	_ ports.CategoryDirectory = (*SQLiteRepository)(nil)
	_ ports.DocumentStore     = (*SQLiteRepository)(nil)
	_ ports.MonthLister       = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := Migrate(dbPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("Budget schema ready", "db_path", dbPath, "schema_version", version)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps modernc's sqlite clear of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		changes: watch.NewBroker[string](),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers, for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) List(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, row := range rows {
		out[i] = core.Category{
			ID:     row.ID,
			UserID: row.UserID,
			Name:   row.Name,
			Kind:   core.NormalizeKind(row.Kind),
		}
	}
	return out, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, userID, name string, kind core.Kind) (core.Category, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Category{}, core.ErrEmptyUserID
	}
	k, err := core.ParseKind(string(kind))
	if err != nil {
		return core.Category{}, err
	}
	c := core.Category{ID: uuid.NewString(), UserID: userID, Name: strings.TrimSpace(name), Kind: k}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	err = r.queries.CreateCategory(ctx, CreateCategoryParams{
		ID:        c.ID,
		UserID:    c.UserID,
		Name:      c.Name,
		Kind:      string(c.Kind),
		CreatedAt: sql.NullTime{Time: r.now().UTC(), Valid: true},
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	r.logger.InfoContext(ctx, "Category created",
		log.FieldCategoryID, c.ID,
		log.FieldUserID, userID,
		"kind", c.Kind)
	r.changes.Publish(userID)
	return c, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id, name string, kind core.Kind) error {
	k, err := core.ParseKind(string(kind))
	if err != nil {
		return err
	}
	c := core.Category{ID: id, Name: strings.TrimSpace(name), Kind: k}
	if err := c.Validate(); err != nil {
		return err
	}

	existing, err := r.queries.GetCategory(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrCategoryNotFound
	}
	if err != nil {
		return fmt.Errorf("get category: %w", err)
	}

	n, err := r.queries.UpdateCategory(ctx, UpdateCategoryParams{Name: c.Name, Kind: string(c.Kind), ID: id})
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n == 0 {
		return ports.ErrCategoryNotFound
	}
	r.changes.Publish(existing.UserID)
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.queries.GetCategory(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrCategoryNotFound
	}
	if err != nil {
		return fmt.Errorf("get category: %w", err)
	}

	n, err := r.queries.DeleteCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n == 0 {
		return ports.ErrCategoryNotFound
	}

	r.logger.InfoContext(ctx, "Category deleted", log.FieldCategoryID, id, log.FieldUserID, existing.UserID)
	r.changes.Publish(existing.UserID)
	return nil
}

// Subscribe only sees changes made through this repository instance.
func (r *SQLiteRepository) Subscribe(userID string, onChange func()) func() {
	return r.changes.Subscribe(userID, onChange)
}

// SeedCategories creates the given categories for userID when the user has
// none yet. It reports how many were created.
func (r *SQLiteRepository) SeedCategories(ctx context.Context, userID string, seeds []core.Category) (int, error) {
	count, err := r.queries.CountCategories(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	created := 0
	for _, s := range seeds {
		if _, err := r.Create(ctx, userID, s.Name, s.Kind); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (core.BudgetDocument, bool, error) {
	row, err := r.queries.GetBudgetDocument(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetDocument{}, false, nil
	}
	if err != nil {
		return core.BudgetDocument{}, false, fmt.Errorf("get budget document: %w", err)
	}
	var doc core.BudgetDocument
	if err := json.Unmarshal([]byte(row.Body), &doc); err != nil {
		return core.BudgetDocument{}, false, fmt.Errorf("decode budget document %s: %w", key, err)
	}
	return doc, true, nil
}

// Set stores doc as its exact JSON layout, replacing any previous version.
func (r *SQLiteRepository) Set(ctx context.Context, key string, doc core.BudgetDocument) error {
	if doc.Items == nil {
		doc.Items = []core.SavedItem{}
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode budget document: %w", err)
	}
	var updated sql.NullTime
	if doc.UpdatedAt != nil {
		updated = sql.NullTime{Time: doc.UpdatedAt.UTC(), Valid: true}
	}
	err = r.queries.UpsertBudgetDocument(ctx, UpsertBudgetDocumentParams{
		DocKey:    key,
		UserID:    doc.UserID,
		Month:     doc.Month.String(),
		Body:      string(body),
		UpdatedAt: updated,
	})
	if err != nil {
		return fmt.Errorf("upsert budget document: %w", err)
	}
	r.logger.DebugContext(ctx, "Budget document stored", log.FieldDocKey, key, log.FieldItems, len(doc.Items))
	return nil
}

// RawDocument returns the stored JSON body for key, as written.
func (r *SQLiteRepository) RawDocument(ctx context.Context, key string) (string, error) {
	row, err := r.queries.GetBudgetDocument(ctx, key)
	if err != nil {
		return "", err
	}
	return row.Body, nil
}

// Months lists the months with a saved budget for userID, newest first.
func (r *SQLiteRepository) Months(ctx context.Context, userID string) ([]core.Month, error) {
	rows, err := r.queries.ListBudgetMonths(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budget months: %w", err)
	}
	out := make([]core.Month, 0, len(rows))
	for _, m := range rows {
		out = append(out, core.Month(m))
	}
	return out, nil
}
