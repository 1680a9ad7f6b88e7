// Package google mirrors saved budgets into a Google Sheets spreadsheet, one
// tab per month.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/ports"
	"bilancio/internal/sheets"
)

type Config struct {
	SpreadsheetID      string
	SheetPrefix        string
	ServiceAccountJSON string
	ServiceAccountFile string
	Summarizer         core.Summarizer
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	prefix        string
	summarizer    core.Summarizer
	logger        *log.Logger

	// known caches tab titles already present in the spreadsheet.
	mu    sync.Mutex
	known map[string]bool
}

var _ ports.BudgetMirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger), nil
}

// NewWithService wraps an existing service, for tests and custom transports.
func NewWithService(svc *gsheet.Service, cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	prefix := strings.TrimSpace(cfg.SheetPrefix)
	if prefix == "" {
		prefix = sheets.DefaultSheetPrefix
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		prefix:        prefix,
		summarizer:    cfg.Summarizer,
		logger:        logger.WithComponent(log.ComponentSheets),
		known:         make(map[string]bool),
	}
}

func credentialsJSON(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// WriteBudget replaces the content of the month's tab with doc, creating
// the tab when needed.
func (c *Client) WriteBudget(ctx context.Context, doc core.BudgetDocument) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if !doc.Month.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidMonth, doc.Month)
	}
	sheet := sheets.SheetName(c.prefix, doc.Month)
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return err
	}

	clearRange := sheets.A1Range(sheet, "A:Z")
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}

	rows := sheets.BudgetRows(doc, c.summarizer)
	rng := sheets.A1Range(sheet, "A1")
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", sheet, err)
	}

	c.logger.InfoContext(ctx, "Budget mirrored to spreadsheet",
		log.FieldSheet, sheet,
		log.FieldUserID, doc.UserID,
		log.FieldItems, len(doc.Items))
	return nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	c.mu.Lock()
	ok := c.known[title]
	c.mu.Unlock()
	if ok {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	exists := false
	c.mu.Lock()
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		c.known[s.Properties.Title] = true
		if s.Properties.Title == title {
			exists = true
		}
	}
	c.mu.Unlock()
	if exists {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	c.logger.InfoContext(ctx, "Created budget sheet", log.FieldSheet, title)

	c.mu.Lock()
	c.known[title] = true
	c.mu.Unlock()
	return nil
}

// InvalidateSheets forgets which tabs exist, forcing a lookup on next write.
func (c *Client) InvalidateSheets() {
	c.mu.Lock()
	c.known = make(map[string]bool)
	c.mu.Unlock()
}
