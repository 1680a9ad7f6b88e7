// Package memory is the in-process backend: a category directory and a
// document store kept in maps, good for development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/ports"
	"bilancio/internal/watch"
)

// SeedFile is read from the data directory by NewFromFiles.
const SeedFile = "seed_categories.txt"

type Store struct {
	mu      sync.Mutex
	cats    map[string]core.Category
	created map[string]time.Time
	docs    map[string]core.BudgetDocument
	changes *watch.Broker[string]
	now     func() time.Time
}

var (
	_ ports.CategoryDirectory = (*Store)(nil)
	_ ports.DocumentStore     = (*Store)(nil)
	_ ports.MonthLister       = (*Store)(nil)
)

func New() *Store {
	return &Store{
		cats:    make(map[string]core.Category),
		created: make(map[string]time.Time),
		docs:    make(map[string]core.BudgetDocument),
		changes: watch.NewBroker[string](),
		now:     time.Now,
	}
}

// NewFromFiles builds a store whose directory for userID is seeded from
// base/seed_categories.txt. Each line is "kind:name"; blank lines and lines
// starting with # are skipped, as are duplicates. A missing file seeds a
// small default set.
func NewFromFiles(base, userID string) (*Store, error) {
	seeds, err := LoadSeeds(base)
	if err != nil {
		return nil, err
	}
	s := New()
	ctx := context.Background()
	for _, c := range seeds {
		if _, err := s.Create(ctx, userID, c.Name, c.Kind); err != nil {
			return nil, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
	}
	return s, nil
}

// LoadSeeds reads base/seed_categories.txt, falling back to the default set
// when the file does not exist.
func LoadSeeds(base string) ([]core.Category, error) {
	seeds, err := readSeeds(filepath.Join(base, SeedFile))
	if err != nil {
		return nil, err
	}
	if seeds == nil {
		seeds = defaultSeeds()
	}
	return seeds, nil
}

func defaultSeeds() []core.Category {
	return []core.Category{
		{Name: "Rent", Kind: core.KindExpense},
		{Name: "Groceries", Kind: core.KindExpense},
		{Name: "Utilities", Kind: core.KindExpense},
		{Name: "Salary", Kind: core.KindIncome},
	}
}

// List returns userID's categories, expenses first, then by name, then
// by creation time and id.
func (s *Store) List(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	out := make([]core.Category, 0, len(s.cats))
	for _, c := range s.cats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	created := s.created
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind == core.KindExpense
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if ca, cb := created[a.ID], created[b.ID]; !ca.Equal(cb) {
			return ca.Before(cb)
		}
		return a.ID < b.ID
	})
	s.mu.Unlock()
	return out, nil
}

func (s *Store) Create(_ context.Context, userID, name string, kind core.Kind) (core.Category, error) {
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

	s.mu.Lock()
	s.cats[c.ID] = c
	s.created[c.ID] = s.now()
	s.mu.Unlock()

	s.changes.Publish(userID)
	return c, nil
}

func (s *Store) Update(_ context.Context, id, name string, kind core.Kind) error {
	k, err := core.ParseKind(string(kind))
	if err != nil {
		return err
	}
	s.mu.Lock()
	c, ok := s.cats[id]
	if !ok {
		s.mu.Unlock()
		return ports.ErrCategoryNotFound
	}
	c.Name = strings.TrimSpace(name)
	c.Kind = k
	if err := c.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.cats[id] = c
	s.mu.Unlock()

	s.changes.Publish(c.UserID)
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	c, ok := s.cats[id]
	if !ok {
		s.mu.Unlock()
		return ports.ErrCategoryNotFound
	}
	delete(s.cats, id)
	delete(s.created, id)
	s.mu.Unlock()

	s.changes.Publish(c.UserID)
	return nil
}

func (s *Store) Subscribe(userID string, onChange func()) func() {
	return s.changes.Subscribe(userID, onChange)
}

// Get returns a deep copy of the stored document.
func (s *Store) Get(_ context.Context, key string) (core.BudgetDocument, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		return core.BudgetDocument{}, false, nil
	}
	return cloneDocument(doc), true, nil
}

func (s *Store) Set(_ context.Context, key string, doc core.BudgetDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = cloneDocument(doc)
	return nil
}

// Months lists the months with a stored document for userID, newest first.
func (s *Store) Months(_ context.Context, userID string) ([]core.Month, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Month{}
	for _, doc := range s.docs {
		if doc.UserID == userID {
			out = append(out, doc.Month)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out, nil
}

func cloneDocument(doc core.BudgetDocument) core.BudgetDocument {
	out := doc
	out.Items = make([]core.SavedItem, len(doc.Items))
	for i, it := range doc.Items {
		if it.Amount != nil {
			v := *it.Amount
			it.Amount = &v
		}
		out.Items[i] = it
	}
	if doc.UpdatedAt != nil {
		t := *doc.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// readSeeds returns nil without error when the file does not exist.
func readSeeds(path string) ([]core.Category, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	seen := map[string]struct{}{}
	out := []core.Category{}
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kindText, name, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%s:%d: expected kind:name", filepath.Base(path), lineNo)
		}
		kind, err := core.ParseKind(kindText)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filepath.Base(path), lineNo, err)
		}
		name = strings.TrimSpace(name)
		id := string(kind) + ":" + name
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, core.Category{Name: name, Kind: kind})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return out, nil
}
