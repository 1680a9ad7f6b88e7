package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"bilancio/internal/core"
	"bilancio/internal/ports"
)

func names(cats []core.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c.Kind) + ":" + c.Name
	}
	return out
}

func TestListOrdersExpensesFirstThenName(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, c := range []struct {
		name string
		kind core.Kind
	}{
		{"Salary", core.KindIncome},
		{"Rent", core.KindExpense},
		{"Bonus", core.KindIncome},
		{"Food", core.KindExpense},
	} {
		if _, err := s.Create(ctx, "u1", c.name, c.kind); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := s.Create(ctx, "u2", "Other user", core.KindExpense); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"expense:Food", "expense:Rent", "income:Bonus", "income:Salary"}
	if diff := cmp.Diff(want, names(got)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestListBreaksTiesByID(t *testing.T) {
	ctx := context.Background()
	s := New()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	var want []string
	for i := 0; i < 5; i++ {
		c, err := s.Create(ctx, "u1", "Rent", core.KindExpense)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		want = append(want, c.ID)
	}
	sort.Strings(want)

	for i := 0; i < 3; i++ {
		got, err := s.List(ctx, "u1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		ids := make([]string, len(got))
		for j, c := range got {
			ids[j] = c.ID
		}
		if diff := cmp.Diff(want, ids); diff != "" {
			t.Fatalf("list %d order mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestCreateValidates(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.Create(ctx, "u1", "   ", core.KindExpense); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := s.Create(ctx, "u1", "X", "bogus"); !errors.Is(err, core.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	c, err := s.Create(ctx, "u1", "  Gym ", "gasto")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Name != "Gym" || c.Kind != core.KindExpense || c.ID == "" {
		t.Fatalf("unexpected category %+v", c)
	}
}

func TestUpdateDeleteUnknown(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Update(ctx, "nope", "X", core.KindExpense); !errors.Is(err, ports.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, ports.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestSubscribeNotifiesOwner(t *testing.T) {
	s := New()
	ctx := context.Background()
	var mine, theirs int
	cancel := s.Subscribe("u1", func() { mine++ })
	defer s.Subscribe("u2", func() { theirs++ })()

	c, _ := s.Create(ctx, "u1", "Rent", core.KindExpense)
	_ = s.Update(ctx, c.ID, "Mortgage", core.KindExpense)
	_ = s.Delete(ctx, c.ID)
	if mine != 3 || theirs != 0 {
		t.Fatalf("unexpected notifications mine=%d theirs=%d", mine, theirs)
	}

	cancel()
	_, _ = s.Create(ctx, "u1", "Food", core.KindExpense)
	if mine != 3 {
		t.Fatalf("notification after cancel")
	}
}

func TestDocumentsAreCopied(t *testing.T) {
	s := New()
	ctx := context.Background()
	v := 10.0
	now := time.Now().UTC()
	doc := core.BudgetDocument{UserID: "u1", Month: "2025-01", Items: []core.SavedItem{{CategoryID: "a", Amount: &v}}, UpdatedAt: &now}
	if err := s.Set(ctx, "u1_2025-01", doc); err != nil {
		t.Fatalf("set: %v", err)
	}
	v = 99

	got, found, err := s.Get(ctx, "u1_2025-01")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if *got.Items[0].Amount != 10 {
		t.Fatalf("store shares memory with caller")
	}

	if _, found, err := s.Get(ctx, "missing"); found || err != nil {
		t.Fatalf("missing key: found=%v err=%v", found, err)
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFiles(dir, "family")
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cats, _ := s.List(context.Background(), "family"); len(cats) == 0 {
		t.Fatalf("expected defaults when file is missing")
	}

	content := "# header\nexpense:Rent\ngasto:Rent\n\nincome:Salary\ningreso: Bonus \n"
	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err = NewFromFiles(dir, "family")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	cats, _ := s.List(context.Background(), "family")
	want := []string{"expense:Rent", "income:Bonus", "income:Salary"}
	if diff := cmp.Diff(want, names(cats)); diff != "" {
		t.Fatalf("seed mismatch (-want +got):\n%s", diff)
	}
}

func TestNewFromFilesRejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte("Rent\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFromFiles(dir, "family"); err == nil {
		t.Fatalf("expected error for line without kind")
	}
}

func TestMonthsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, k := range []struct {
		user  string
		month core.Month
	}{{"u1", "2024-11"}, {"u1", "2025-02"}, {"u2", "2025-03"}, {"u1", "2025-01"}} {
		doc := core.BudgetDocument{UserID: k.user, Month: k.month, Items: []core.SavedItem{}}
		if err := s.Set(ctx, core.DocumentKey(k.user, k.month), doc); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	got, err := s.Months(ctx, "u1")
	if err != nil {
		t.Fatalf("months: %v", err)
	}
	if diff := cmp.Diff([]core.Month{"2025-02", "2025-01", "2024-11"}, got); diff != "" {
		t.Fatalf("months mismatch (-want +got):\n%s", diff)
	}
}
