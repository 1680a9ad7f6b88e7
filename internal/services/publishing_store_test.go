package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage/memory"
)

type recordingPublisher struct {
	msgs   []*amqp.BudgetSavedMessage
	err    error
	closed bool
}

func (p *recordingPublisher) PublishBudgetSaved(_ context.Context, msg *amqp.BudgetSavedMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

type failingStore struct{ *memory.Store }

func (failingStore) Set(context.Context, string, core.BudgetDocument) error {
	return errors.New("disk full")
}

func testDoc() core.BudgetDocument {
	now := time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC)
	return core.BudgetDocument{UserID: "u1", Month: "2025-01", Items: []core.SavedItem{}, UpdatedAt: &now}
}

func TestPublishingStorePublishesAfterWrite(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	pub := &recordingPublisher{}
	s := NewPublishingStore(mem, pub, nil)

	if err := s.Set(ctx, "u1_2025-01", testDoc()); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Key != "u1_2025-01" || pub.msgs[0].Month != "2025-01" {
		t.Fatalf("unexpected messages %+v", pub.msgs)
	}
	if _, found, _ := s.Get(ctx, "u1_2025-01"); !found {
		t.Fatalf("document not stored")
	}
}

func TestPublishingStoreIgnoresPublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker gone")}
	s := NewPublishingStore(memory.New(), pub, nil)
	if err := s.Set(context.Background(), "u1_2025-01", testDoc()); err != nil {
		t.Fatalf("publish failure must not fail the save: %v", err)
	}
}

func TestPublishingStoreSkipsPublishOnWriteFailure(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewPublishingStore(failingStore{memory.New()}, pub, nil)
	if err := s.Set(context.Background(), "u1_2025-01", testDoc()); err == nil {
		t.Fatalf("expected write error")
	}
	if len(pub.msgs) != 0 {
		t.Fatalf("nothing should be published for a failed write")
	}
}

func TestPublishingStoreWithoutPublisher(t *testing.T) {
	s := NewPublishingStore(memory.New(), nil, nil)
	if err := s.Set(context.Background(), "k", testDoc()); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublishingStoreClose(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewPublishingStore(memory.New(), pub, nil)
	if err := s.Close(); err != nil || !pub.closed {
		t.Fatalf("close: err=%v closed=%v", err, pub.closed)
	}
}
