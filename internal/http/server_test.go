package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"bilancio/internal/budget"
	"bilancio/internal/core"
	"bilancio/internal/format"
	"bilancio/internal/storage/memory"
)

const testUser = "family"

type fixture struct {
	srv   *Server
	mem   *memory.Store
	rent  core.Category
	pay   core.Category
	store *flakyStore
}

// flakyStore fails Set while failing is true.
type flakyStore struct {
	*memory.Store
	failing bool
}

func (f *flakyStore) Set(ctx context.Context, key string, doc core.BudgetDocument) error {
	if f.failing {
		return errors.New("disk full")
	}
	return f.Store.Set(ctx, key, doc)
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	mem := memory.New()
	ctx := context.Background()
	rent, err := mem.Create(ctx, testUser, "Rent", core.KindExpense)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	pay, err := mem.Create(ctx, testUser, "Salary", core.KindIncome)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := &flakyStore{Store: mem}
	manager := budget.NewManager(mem, store)

	deps := Deps{
		Manager:       manager,
		Directory:     mem,
		Formatter:     format.New("en", "$"),
		DefaultUserID: testUser,
	}
	if mutate != nil {
		mutate(&deps)
	}
	srv, err := NewServer(":0", deps)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = manager.Close()
	})
	return &fixture{srv: srv, mem: mem, rent: rent, pay: pay, store: store}
}

func (f *fixture) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (f *fixture) api(t *testing.T, target string) budgetDTO {
	t.Helper()
	rr := f.do(t, http.MethodGet, target, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET %s status=%d body=%s", target, rr.Code, rr.Body.String())
	}
	var dto budgetDTO
	if err := json.NewDecoder(rr.Body).Decode(&dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return dto
}

func TestIndexRedirectsAndHealth(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodGet, "/", nil)
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "/budget" {
		t.Fatalf("index status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := f.do(t, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	if rr := f.do(t, http.MethodGet, "/static/app.css", nil); rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}
}

func TestReadyReportsBackendFailure(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Ready = func(context.Context) error { return errors.New("db locked") }
	})
	rr := f.do(t, http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "db locked") {
		t.Fatalf("body should name the failure: %s", rr.Body.String())
	}
}

func TestBudgetPageRendersMonth(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(t, http.MethodGet, "/budget?month=2024-01", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"January 2024", "Rent", "Salary", "month=2023-12", "month=2024-02", "Not saved yet"} {
		if !strings.Contains(body, want) {
			t.Fatalf("budget page missing %q", want)
		}
	}
}

func TestBudgetPageInvalidMonthFallsBack(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(t, http.MethodGet, "/budget?month=2024-13", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := f.api(t, "/api/budget").Month; got != core.CurrentMonth().String() {
		t.Fatalf("expected current month, got %s", got)
	}
}

func TestEditsDoNotMoveSummaryUntilSave(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/budget?month=2024-01", nil)

	rr := f.do(t, http.MethodPost, "/budget/items/"+f.rent.ID+"/amount", url.Values{"amount": {"800"}, "month": {"2024-01"}})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `value="800"`) {
		t.Fatalf("amount edit status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = f.do(t, http.MethodPost, "/budget/items/"+f.rent.ID+"/paid", url.Values{"paid": {"on"}, "month": {"2024-01"}})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "checked") {
		t.Fatalf("paid edit status=%d body=%s", rr.Code, rr.Body.String())
	}
	f.do(t, http.MethodPost, "/budget/items/"+f.pay.ID+"/amount", url.Values{"amount": {"1000"}, "month": {"2024-01"}})

	dto := f.api(t, "/api/budget?month=2024-01")
	if dto.Summary.TotalPaid != 0 || dto.Summary.TotalAvailable != 0 {
		t.Fatalf("summary moved before save: %+v", dto.Summary)
	}
	if dto.Items[0].Amount != "800" || !dto.Items[0].Paid {
		t.Fatalf("edit buffer not updated: %+v", dto.Items[0])
	}

	rr = f.do(t, http.MethodPost, "/budget/save", url.Values{"month": {"2024-01"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, "budget:saved") || !strings.Contains(trigger, "show-notification") {
		t.Fatalf("unexpected triggers %q", trigger)
	}
	if !strings.Contains(rr.Body.String(), "$ 200.00") {
		t.Fatalf("summary partial should show availability: %s", rr.Body.String())
	}

	dto = f.api(t, "/api/budget?month=2024-01")
	if dto.Summary.TotalPaid != 800 || dto.Summary.TotalSalaryIncome != 1000 || dto.Summary.TotalAvailable != 200 {
		t.Fatalf("unexpected summary after save: %+v", dto.Summary)
	}
	if dto.UpdatedAt == nil {
		t.Fatalf("updatedAt should be set after save")
	}

	doc, found, err := f.mem.Get(context.Background(), core.DocumentKey(testUser, "2024-01"))
	if err != nil || !found {
		t.Fatalf("document not stored: found=%v err=%v", found, err)
	}
	if len(doc.Items) != 2 || doc.Items[0].Amount == nil || *doc.Items[0].Amount != 800 {
		t.Fatalf("unexpected stored items %+v", doc.Items)
	}
}

func TestSaveDisabledWithoutItems(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/budget?month=2024-01", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	req.Header.Set("X-Forwarded-User", "nobody")
	f.srv.Handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/budget/save", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	req.Header.Set("X-Forwarded-User", "nobody")
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestSaveFailureKeepsEdits(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/budget?month=2024-01", nil)
	f.do(t, http.MethodPost, "/budget/items/"+f.rent.ID+"/amount", url.Values{"amount": {"12.5"}})

	f.store.failing = true
	rr := f.do(t, http.MethodPost, "/budget/save", nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "error") {
		t.Fatalf("expected an error notification, got %q", rr.Header().Get("HX-Trigger"))
	}

	dto := f.api(t, "/api/budget")
	if dto.State != "ready" || dto.Items[0].Amount != "12.5" || dto.UpdatedAt != nil {
		t.Fatalf("session should be ready with edits intact: %+v", dto)
	}
}

func TestEditRejectsStaleMonth(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/budget?month=2024-01", nil)

	rr := f.do(t, http.MethodPost, "/budget/items/"+f.rent.ID+"/amount", url.Values{"amount": {"5"}, "month": {"2023-05"}})
	if rr.Code != http.StatusConflict || rr.Header().Get("HX-Refresh") != "true" {
		t.Fatalf("expected 409 with refresh, got %d %q", rr.Code, rr.Header().Get("HX-Refresh"))
	}
	if got := f.api(t, "/api/budget").Items[0].Amount; got != "" {
		t.Fatalf("stale edit applied: %q", got)
	}
}

func TestEditUnknownCategory(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/budget?month=2024-01", nil)
	rr := f.do(t, http.MethodPost, "/budget/items/nope/paid", url.Values{"paid": {"true"}})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestBudgetAPIRejectsInvalidMonth(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(t, http.MethodGet, "/api/budget?month=24-01", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestForwardedUserOnlyFromTrustedProxy(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/budget?month=2024-01", nil)
	req.Header.Set("X-Forwarded-User", "mallory")
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	var dto budgetDTO
	_ = json.NewDecoder(rr.Body).Decode(&dto)
	if len(dto.Items) != 2 {
		t.Fatalf("untrusted header should fall back to the default user, got %d items", len(dto.Items))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/budget?month=2024-01", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	req.Header.Set("X-Forwarded-User", "mallory")
	rr = httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	dto = budgetDTO{}
	_ = json.NewDecoder(rr.Body).Decode(&dto)
	if len(dto.Items) != 0 {
		t.Fatalf("trusted proxy user should get their own empty budget, got %d items", len(dto.Items))
	}
}

func TestCategoryLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/budget?month=2024-01", nil)

	rr := f.do(t, http.MethodPost, "/categories", url.Values{"name": {"Phone"}, "kind": {"expense"}})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/categories?ok=created" {
		t.Fatalf("create status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	// The open session follows directory changes.
	dto := f.api(t, "/api/budget")
	if len(dto.Items) != 3 {
		t.Fatalf("expected the new category in the budget, got %+v", dto.Items)
	}

	rr = f.do(t, http.MethodGet, "/categories?ok=created", nil)
	if !strings.Contains(rr.Body.String(), "Phone") || !strings.Contains(rr.Body.String(), "Category created") {
		t.Fatalf("categories page missing new entry")
	}

	rr = f.do(t, http.MethodPost, "/categories/"+f.rent.ID, url.Values{"name": {"Housing"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("update status=%d", rr.Code)
	}
	cats, _ := f.mem.List(context.Background(), testUser)
	renamed := false
	for _, c := range cats {
		if c.ID == f.rent.ID {
			renamed = c.Name == "Housing" && c.Kind == core.KindExpense
		}
	}
	if !renamed {
		t.Fatalf("rename not applied: %+v", cats)
	}

	rr = f.do(t, http.MethodPost, "/categories/"+f.rent.ID+"/delete", nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if dto := f.api(t, "/api/budget"); len(dto.Items) != 2 {
		t.Fatalf("deleted category still in budget: %+v", dto.Items)
	}
}

func TestCategoryValidation(t *testing.T) {
	f := newFixture(t, nil)
	cases := []struct {
		name string
		form url.Values
	}{
		{"blank name", url.Values{"name": {"   "}, "kind": {"expense"}}},
		{"long name", url.Values{"name": {strings.Repeat("x", 101)}, "kind": {"income"}}},
		{"bad kind", url.Values{"name": {"Phone"}, "kind": {"transfer"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/categories", tc.form)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), `class="error"`) {
				t.Fatalf("page should show the error")
			}
		})
	}
}

func TestCategoryActionsAreScopedToUser(t *testing.T) {
	f := newFixture(t, nil)
	other, err := f.mem.Create(context.Background(), "someone-else", "Car", core.KindExpense)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if rr := f.do(t, http.MethodPost, "/categories/"+other.ID, url.Values{"name": {"Mine"}}); rr.Code != http.StatusNotFound {
		t.Fatalf("update of foreign category: expected 404, got %d", rr.Code)
	}
	if rr := f.do(t, http.MethodPost, "/categories/"+other.ID+"/delete", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("delete of foreign category: expected 404, got %d", rr.Code)
	}
}

func TestRateLimitAppliesToMutatingRequests(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.RateLimitPerMinute = 2 })
	f.do(t, http.MethodGet, "/budget?month=2024-01", nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := f.do(t, http.MethodPost, "/budget/items/"+f.rent.ID+"/amount", url.Values{"amount": {"1"}})
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	for i := 0; i < 5; i++ {
		if rr := f.do(t, http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
			t.Fatalf("reads must not be limited, got %d", rr.Code)
		}
	}
}

func TestNewServerRequiresDependencies(t *testing.T) {
	if _, err := NewServer(":0", Deps{}); err == nil {
		t.Fatalf("expected error without manager and directory")
	}
}
