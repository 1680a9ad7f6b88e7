package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage/memory"
)

type recordingMirror struct {
	mu     sync.Mutex
	months []core.Month
	err    error
}

func (m *recordingMirror) WriteBudget(_ context.Context, doc core.BudgetDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.months = append(m.months, doc.Month)
	return nil
}

type failingGetStore struct{ *memory.Store }

func (failingGetStore) Get(context.Context, string) (core.BudgetDocument, bool, error) {
	return core.BudgetDocument{}, false, errors.New("database is locked")
}

type staticMonths []core.Month

func (s staticMonths) Months(context.Context, string) ([]core.Month, error) { return s, nil }

func storeDoc(t *testing.T, s *memory.Store, userID string, month core.Month) {
	t.Helper()
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	doc := core.BudgetDocument{UserID: userID, Month: month, Items: []core.SavedItem{}, UpdatedAt: &now}
	if err := s.Set(context.Background(), core.DocumentKey(userID, month), doc); err != nil {
		t.Fatalf("set: %v", err)
	}
}

func TestHandleBudgetSavedWritesMirror(t *testing.T) {
	mem := memory.New()
	storeDoc(t, mem, "u1", "2025-01")
	mirror := &recordingMirror{}
	w := NewMirrorWorker(mem, mirror, 0, nil)

	err := w.HandleBudgetSaved(context.Background(), &amqp.BudgetSavedMessage{Key: "u1_2025-01", UserID: "u1", Month: "2025-01"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mirror.months) != 1 || mirror.months[0] != "2025-01" {
		t.Fatalf("unexpected mirror writes %v", mirror.months)
	}
}

func TestHandleBudgetSavedSkipsMissingDocument(t *testing.T) {
	mirror := &recordingMirror{}
	w := NewMirrorWorker(memory.New(), mirror, 0, nil)

	if err := w.HandleBudgetSaved(context.Background(), &amqp.BudgetSavedMessage{Key: "u1_2030-01"}); err != nil {
		t.Fatalf("missing document should be skipped, got %v", err)
	}
	if len(mirror.months) != 0 {
		t.Fatalf("nothing should be mirrored, got %v", mirror.months)
	}
}

func TestHandleBudgetSavedReturnsErrors(t *testing.T) {
	mem := memory.New()
	storeDoc(t, mem, "u1", "2025-01")
	msg := &amqp.BudgetSavedMessage{Key: "u1_2025-01"}

	cases := []struct {
		name string
		w    *MirrorWorker
	}{
		{"store", NewMirrorWorker(failingGetStore{mem}, &recordingMirror{}, 0, nil)},
		{"mirror", NewMirrorWorker(mem, &recordingMirror{err: errors.New("quota exceeded")}, 0, nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.w.HandleBudgetSaved(context.Background(), msg); err == nil {
				t.Fatalf("expected error so the message is requeued")
			}
		})
	}
}

func TestBackfillMirrorsEveryMonth(t *testing.T) {
	mem := memory.New()
	months := staticMonths{"2024-12", "2025-01", "2025-02"}
	for _, m := range months {
		storeDoc(t, mem, "u1", m)
	}
	mirror := &recordingMirror{}
	w := NewMirrorWorker(mem, mirror, 2, nil)

	n, err := w.Backfill(context.Background(), months, "u1")
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 months, got %d", n)
	}
	got := append([]core.Month(nil), mirror.months...)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != 3 || got[0] != "2024-12" || got[2] != "2025-02" {
		t.Fatalf("unexpected mirrored months %v", got)
	}
}

func TestBackfillStopsOnFailure(t *testing.T) {
	mem := memory.New()
	storeDoc(t, mem, "u1", "2025-01")
	w := NewMirrorWorker(mem, &recordingMirror{err: errors.New("quota exceeded")}, 1, nil)

	if _, err := w.Backfill(context.Background(), staticMonths{"2025-01"}, "u1"); err == nil {
		t.Fatalf("expected error")
	}
	if n, err := w.Backfill(context.Background(), staticMonths{}, "u1"); err != nil || n != 0 {
		t.Fatalf("empty backfill = %d, %v", n, err)
	}
}
