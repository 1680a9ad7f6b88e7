package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/core"
)

func amount(v float64) *float64 { return &v }

func sampleDoc() core.BudgetDocument {
	updated := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	return core.BudgetDocument{
		UserID: "u1",
		Month:  "2025-03",
		Items: []core.SavedItem{
			{CategoryID: "a", CategoryName: "Rent", Kind: core.KindExpense, Amount: amount(100), Paid: true},
			{CategoryID: "b", CategoryName: "Phone", Kind: core.KindExpense, Amount: amount(50)},
			{CategoryID: "c", CategoryName: "Salary", Kind: core.KindIncome, Amount: amount(1000)},
		},
		UpdatedAt: &updated,
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	if _, err := New(context.Background(), Config{}, nil); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sid"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = New(context.Background(), Config{SpreadsheetID: "sid", ServiceAccountFile: "/nonexistent/key.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// fakeSheets records the API calls the client makes.
type fakeSheets struct {
	mu     sync.Mutex
	calls  []string
	sheets []string
	values [][]any
	ranges []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sid"):
		f.calls = append(f.calls, "get")
		var resp gsheet.Spreadsheet
		for _, title := range f.sheets {
			resp.Sheets = append(resp.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: title}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case strings.HasSuffix(path, ":batchUpdate"):
		f.calls = append(f.calls, "addSheet")
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.Unmarshal(body, &req)
		f.sheets = append(f.sheets, req.Requests[0].AddSheet.Properties.Title)
		_, _ = io.WriteString(w, `{}`)
	case strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear")
		f.ranges = append(f.ranges, strings.TrimSuffix(path[strings.Index(path, "/values/")+len("/values/"):], ":clear"))
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "update")
		f.ranges = append(f.ranges, path[strings.Index(path, "/values/")+len("/values/"):])
		var vr gsheet.ValueRange
		_ = json.Unmarshal(body, &vr)
		f.values = vr.Values
		_, _ = io.WriteString(w, `{}`)
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newFakeClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	return newFakeClientWithPrefix(t, fake, "")
}

func newFakeClientWithPrefix(t *testing.T, fake *fakeSheets, prefix string) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithoutAuthentication(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return NewWithService(svc, Config{SpreadsheetID: "sid", SheetPrefix: prefix}, nil)
}

func TestWriteBudgetCreatesSheetOnce(t *testing.T) {
	fake := &fakeSheets{sheets: []string{"Sheet1"}}
	c := newFakeClient(t, fake)
	ctx := context.Background()

	if err := c.WriteBudget(ctx, sampleDoc()); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := c.WriteBudget(ctx, sampleDoc()); err != nil {
		t.Fatalf("second write: %v", err)
	}

	want := []string{"get", "addSheet", "clear", "update", "clear", "update"}
	if diff := cmp.Diff(want, fake.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if len(fake.values) != 11 {
		t.Fatalf("expected 11 rows written, got %d", len(fake.values))
	}
	if fake.sheets[1] != "Budget 2025-03" {
		t.Fatalf("unexpected sheet title %q", fake.sheets[1])
	}
}

func TestWriteBudgetUsesExistingSheet(t *testing.T) {
	fake := &fakeSheets{sheets: []string{"Budget 2025-03"}}
	c := newFakeClient(t, fake)
	if err := c.WriteBudget(context.Background(), sampleDoc()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if diff := cmp.Diff([]string{"get", "clear", "update"}, fake.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteBudgetRejectsBadMonth(t *testing.T) {
	c := newFakeClient(t, &fakeSheets{})
	doc := sampleDoc()
	doc.Month = "March"
	if err := c.WriteBudget(context.Background(), doc); err == nil {
		t.Fatalf("expected invalid month error")
	}
}

func TestWriteBudgetQuotesApostrophes(t *testing.T) {
	fake := &fakeSheets{}
	c := newFakeClientWithPrefix(t, fake, "Mum's")
	if err := c.WriteBudget(context.Background(), sampleDoc()); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := []string{"'Mum''s 2025-03'!A:Z", "'Mum''s 2025-03'!A1"}
	if diff := cmp.Diff(want, fake.ranges); diff != "" {
		t.Fatalf("ranges mismatch (-want +got):\n%s", diff)
	}
	if fake.sheets[0] != "Mum's 2025-03" {
		t.Fatalf("tab title should stay unescaped, got %q", fake.sheets[0])
	}
}
