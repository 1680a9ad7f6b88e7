// Package services composes the ports with messaging.
package services

import (
	"context"
	"errors"
	"fmt"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/ports"
)

// Publisher is the part of the AMQP client the store needs.
type Publisher interface {
	PublishBudgetSaved(ctx context.Context, msg *amqp.BudgetSavedMessage) error
}

// PublishingStore is a DocumentStore that announces every successful write.
// Publishing is best effort: the document is already stored when the
// message goes out, so a publish failure is logged and never returned.
type PublishingStore struct {
	next      ports.DocumentStore
	publisher Publisher
	logger    *log.Logger
}

var _ ports.DocumentStore = (*PublishingStore)(nil)

// NewPublishingStore wraps next. A nil publisher disables publishing.
func NewPublishingStore(next ports.DocumentStore, publisher Publisher, logger *log.Logger) *PublishingStore {
	if logger == nil {
		logger = log.Discard()
	}
	return &PublishingStore{
		next:      next,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentAMQP),
	}
}

func (s *PublishingStore) Get(ctx context.Context, key string) (core.BudgetDocument, bool, error) {
	return s.next.Get(ctx, key)
}

func (s *PublishingStore) Set(ctx context.Context, key string, doc core.BudgetDocument) error {
	if err := s.next.Set(ctx, key, doc); err != nil {
		return err
	}
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not configured, skipping budget saved message", log.FieldDocKey, key)
		return nil
	}
	if err := s.publisher.PublishBudgetSaved(ctx, amqp.NewBudgetSavedMessage(key, doc)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish budget saved message",
			log.FieldDocKey, key,
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
	return nil
}

// Close closes whichever of the wrapped store and the publisher can be
// closed.
func (s *PublishingStore) Close() error {
	var errs []error
	if c, ok := s.next.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
