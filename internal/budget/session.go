// Package budget implements the editing session for one user's monthly
// budget: load and merge, edit in a buffer, save back to the document store.
package budget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/ports"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSaving:
		return "saving"
	default:
		return "idle"
	}
}

var (
	// ErrStaleLoad is returned to a Load whose result was superseded by a
	// newer Load before it completed. The result is discarded.
	ErrStaleLoad = errors.New("budget load superseded by a newer load")
	// ErrSaveDisabled is returned by Save while loading, while another save
	// is in flight, or when the buffer is empty.
	ErrSaveDisabled = errors.New("save is not available right now")
	ErrNotReady     = errors.New("budget is not loaded")
	// ErrUnknownCategory is returned when editing an item that is not in the
	// buffer.
	ErrUnknownCategory = errors.New("category is not part of this budget")
)

// NoticeLoadFailed is shown when the stored document could not be read and
// the session started from an empty budget instead.
const NoticeLoadFailed = "The saved budget could not be loaded; showing an empty budget."

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	UserID    string
	Month     core.Month
	State     State
	Items     []core.BudgetLineItem
	Summary   core.BudgetSummary
	UpdatedAt *time.Time
	Notice    string
}

// CanSave mirrors the checks Save makes before writing.
func (s Snapshot) CanSave() bool {
	return s.State == StateReady && len(s.Items) > 0
}

// Session holds one user's budget for one month at a time. The summary is
// frozen: it is computed on load and after a successful save, never from
// unsaved edits. Safe for concurrent use.
type Session struct {
	userID     string
	dir        ports.CategoryDirectory
	store      ports.DocumentStore
	summarizer core.Summarizer
	logger     *log.Logger
	now        func() time.Time

	mu        sync.Mutex
	state     State
	month     core.Month
	gen       uint64
	items     []core.BudgetLineItem
	summary   core.BudgetSummary
	updatedAt *time.Time
	notice    string
}

// Option configures a Session or a Manager.
type Option func(*options)

type options struct {
	summarizer core.Summarizer
	logger     *log.Logger
	now        func() time.Time
}

// WithSummarizer sets the rule used for the frozen summary.
func WithSummarizer(s core.Summarizer) Option {
	return func(o *options) { o.summarizer = s }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock replaces time.Now for save timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Discard()
	}
	return o
}

func NewSession(userID string, dir ports.CategoryDirectory, store ports.DocumentStore, opts ...Option) *Session {
	o := buildOptions(opts)
	return &Session{
		userID:     userID,
		dir:        dir,
		store:      store,
		summarizer: o.summarizer,
		logger:     o.logger.WithComponent(log.ComponentSession).With(log.FieldUserID, userID),
		now:        o.now,
		summary:    core.BudgetSummary{PendingItems: []core.SavedItem{}},
	}
}

func (s *Session) UserID() string {
	return s.userID
}

// Load replaces the session content with the merged budget for month.
//
// A failure to read the stored document is not returned: the session starts
// from an empty document and carries NoticeLoadFailed. A failure to list the
// categories leaves an empty buffer and is returned. If another Load starts
// before this one finishes, this result is dropped and ErrStaleLoad returned.
func (s *Session) Load(ctx context.Context, month core.Month) error {
	if !month.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidMonth, month)
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = StateLoading
	s.month = month
	s.mu.Unlock()

	key := core.DocumentKey(s.userID, month)
	logger := s.logger.With(log.FieldMonth, month.String(), log.FieldGeneration, gen)

	cats, err := s.dir.List(ctx, s.userID)
	if err != nil {
		if !s.commitLoad(gen, []core.BudgetLineItem{}, nil, "") {
			return ErrStaleLoad
		}
		logger.ErrorContext(ctx, "Failed to list categories", log.FieldError, err)
		return fmt.Errorf("list categories: %w", err)
	}

	var saved []core.SavedItem
	var updatedAt *time.Time
	notice := ""
	doc, found, err := s.store.Get(ctx, key)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "Failed to load budget document, starting empty",
			log.FieldDocKey, key, log.FieldError, err)
		notice = NoticeLoadFailed
	case found:
		saved = doc.Items
		updatedAt = doc.UpdatedAt
	}

	items := core.Merge(cats, saved)
	if !s.commitLoad(gen, items, updatedAt, notice) {
		logger.DebugContext(ctx, "Discarding stale budget load")
		return ErrStaleLoad
	}
	logger.DebugContext(ctx, "Budget loaded", log.FieldItems, len(items), "found", found)
	return nil
}

// commitLoad installs a load result unless a newer load has started.
func (s *Session) commitLoad(gen uint64, items []core.BudgetLineItem, updatedAt *time.Time, notice string) bool {
	summary := s.summarizer.Summarize(core.Coerce(items))

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.items = items
	s.summary = summary
	s.updatedAt = updatedAt
	s.notice = notice
	s.state = StateReady
	return true
}

// Reload loads the current month again. It is a no-op before the first Load.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	month := s.month
	s.mu.Unlock()
	if month == "" {
		return nil
	}
	return s.Load(ctx, month)
}

// SetAmount replaces the amount text of one item. The text is kept as typed;
// it is only coerced to a number on save.
func (s *Session) SetAmount(categoryID, text string) error {
	return s.edit(categoryID, func(it *core.BudgetLineItem) { it.Amount = text })
}

func (s *Session) SetPaid(categoryID string, paid bool) error {
	return s.edit(categoryID, func(it *core.BudgetLineItem) { it.Paid = paid })
}

func (s *Session) edit(categoryID string, apply func(*core.BudgetLineItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return ErrNotReady
	}
	for i := range s.items {
		if s.items[i].CategoryID == categoryID {
			apply(&s.items[i])
			return nil
		}
	}
	return ErrUnknownCategory
}

// Save writes the whole buffer as the month's document. On success the
// summary and timestamp are refreshed from what was written; on failure the
// session returns to Ready with both untouched.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady || len(s.items) == 0 {
		s.mu.Unlock()
		return ErrSaveDisabled
	}
	s.state = StateSaving
	gen := s.gen
	month := s.month
	items := core.Coerce(s.items)
	s.mu.Unlock()

	key := core.DocumentKey(s.userID, month)
	now := s.now().UTC()
	doc := core.BudgetDocument{
		UserID:    s.userID,
		Month:     month,
		Items:     items,
		UpdatedAt: &now,
	}
	err := s.store.Set(ctx, key, doc)
	summary := s.summarizer.Summarize(items)

	s.mu.Lock()
	defer s.mu.Unlock()
	superseded := gen != s.gen
	if err != nil {
		if !superseded {
			s.state = StateReady
		}
		s.logger.ErrorContext(ctx, "Failed to save budget", log.FieldDocKey, key, log.FieldError, err)
		return fmt.Errorf("save budget %s: %w", key, err)
	}
	if superseded {
		s.logger.DebugContext(ctx, "Budget saved while a newer load was running", log.FieldDocKey, key)
		return nil
	}
	s.summary = summary
	s.updatedAt = &now
	s.notice = ""
	s.state = StateReady
	s.logger.InfoContext(ctx, "Budget saved", log.FieldDocKey, key, log.FieldItems, len(items))
	return nil
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		UserID:  s.userID,
		Month:   s.month,
		State:   s.state,
		Items:   append([]core.BudgetLineItem{}, s.items...),
		Summary: s.summary,
		Notice:  s.notice,
	}
	snap.Summary.PendingItems = append([]core.SavedItem{}, s.summary.PendingItems...)
	if s.updatedAt != nil {
		t := *s.updatedAt
		snap.UpdatedAt = &t
	}
	return snap
}

// Items returns a copy of the edit buffer.
func (s *Session) Items() []core.BudgetLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.BudgetLineItem{}, s.items...)
}

func (s *Session) Month() core.Month {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.month
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
