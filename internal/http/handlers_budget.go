package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"bilancio/internal/budget"
	"bilancio/internal/core"
	"bilancio/internal/log"
)

func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*budget.Session, bool) {
	session, err := s.manager.Session(s.userIDFor(r))
	if err != nil {
		s.errors.LogError(r.Context(), "Failed to open budget session", err, log.ComponentSession, log.OpLoad,
			log.NewFields().WithClientIP(s.detector.ExtractClientIP(r)))
		InternalServerError("Budget is not available").Write(w)
		return nil, false
	}
	return session, true
}

// ensureLoaded loads month into the session unless it already holds it.
// refresh forces a reload.
func (s *Server) ensureLoaded(r *http.Request, session *budget.Session, month core.Month, refresh bool) error {
	snap := session.Snapshot()
	if !refresh && snap.Month == month && snap.State != budget.StateIdle {
		return nil
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	err := session.Load(ctx, month)
	if errors.Is(err, budget.ErrStaleLoad) {
		return nil
	}
	return err
}

func (s *Server) handleBudgetPage(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())
	session, ok := s.sessionFor(w, r)
	if !ok {
		return
	}

	month, valid := monthParam(r)
	if !valid {
		logger.WarnContext(r.Context(), "Invalid month parameter, using current month",
			log.FieldQuery, r.URL.RawQuery)
	}
	if month == "" {
		month = session.Month()
		if month == "" {
			month = core.CurrentMonth()
		}
	}

	pageErr := ""
	if err := s.ensureLoaded(r, session, month, isTruthy(r.URL.Query().Get("refresh"))); err != nil {
		logger.ErrorContext(r.Context(), "Failed to load budget",
			log.FieldUserID, session.UserID(), log.FieldMonth, month.String(), log.FieldError, err)
		pageErr = "Categories could not be loaded. Try again later."
	}

	view := newBudgetPageView(session.Snapshot(), s.money)
	view.Error = pageErr
	s.render(w, r, http.StatusOK, "budget.html", view)
}

// checkMonth rejects edits aimed at a month the session no longer holds.
// The client is told to refresh.
func checkMonth(w http.ResponseWriter, r *http.Request, session *budget.Session) bool {
	formMonth := r.PostFormValue("month")
	if formMonth == "" || core.Month(formMonth) == session.Month() {
		return true
	}
	ConflictError("This budget changed in another window.").
		TriggerErrorNotification("This budget changed in another window. Reloading.").
		Refresh().
		Write(w)
	return false
}

func (s *Server) writeEditError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, budget.ErrUnknownCategory):
		NotFoundError("Unknown category").
			TriggerCategoriesChanged().
			TriggerErrorNotification("That category no longer exists.").
			Write(w)
	case errors.Is(err, budget.ErrNotReady):
		ConflictError("The budget is still loading").
			TriggerErrorNotification("The budget is still loading.").
			Write(w)
	default:
		InternalServerError("Could not update the budget").Write(w)
	}
}

func (s *Server) writeRow(w http.ResponseWriter, r *http.Request, session *budget.Session, id string) {
	snap := session.Snapshot()
	for _, it := range snap.Items {
		if it.CategoryID == id {
			s.render(w, r, http.StatusOK, "budget_row", newRowView(it, snap.Month, snap.State == budget.StateReady))
			return
		}
	}
	NotFoundError("Unknown category").Write(w)
}

func (s *Server) handleSetAmount(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	session, ok := s.sessionFor(w, r)
	if !ok || !checkMonth(w, r, session) {
		return
	}

	amount := sanitizeInput(r.PostFormValue("amount"))
	if len(amount) > maxAmountLen {
		UnprocessableEntityError("Amount is too long").Write(w)
		return
	}
	id := r.PathValue("id")
	if err := session.SetAmount(id, amount); err != nil {
		s.writeEditError(w, err)
		return
	}
	s.writeRow(w, r, session, id)
}

func (s *Server) handleSetPaid(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	session, ok := s.sessionFor(w, r)
	if !ok || !checkMonth(w, r, session) {
		return
	}

	id := r.PathValue("id")
	if err := session.SetPaid(id, isTruthy(r.PostFormValue("paid"))); err != nil {
		s.writeEditError(w, err)
		return
	}
	s.writeRow(w, r, session, id)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	session, ok := s.sessionFor(w, r)
	if !ok || !checkMonth(w, r, session) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	err := session.Save(ctx)
	switch {
	case errors.Is(err, budget.ErrSaveDisabled):
		ConflictError("Nothing to save right now").
			TriggerErrorNotification("Nothing to save right now.").
			Write(w)
		return
	case err != nil:
		s.errors.LogError(r.Context(), "Failed to save budget", err, log.ComponentSession, log.OpSave,
			log.NewFields().
				WithRequestID(requestID(r)).
				WithBudget(session.UserID(), session.Month().String()))
		BadGatewayError("The budget could not be saved").
			TriggerErrorNotification("The budget could not be saved. Your changes are still here.").
			Write(w)
		return
	}

	snap := session.Snapshot()
	body, err := s.renderString("budget_summary", newSummaryView(snap, s.money))
	if err != nil {
		s.errors.LogError(r.Context(), "Template execution failed", err, log.ComponentTemplate, log.OpRender,
			log.NewFields().WithRequestID(requestID(r)))
		InternalServerError("Saved, but the summary could not be shown").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerSuccessNotification("Budget saved").
		TriggerBudgetSaved(snap.Month.String()).
		BodyHTML(body).
		Write(w)
}

func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessionFor(w, r)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "budget_summary", newSummaryView(session.Snapshot(), s.money))
}

type summaryDTO struct {
	TotalPaid         float64          `json:"totalPaid"`
	TotalSalaryIncome float64          `json:"totalSalaryIncome"`
	TotalAvailable    float64          `json:"totalAvailable"`
	PendingItems      []core.SavedItem `json:"pendingItems"`
	TotalPending      float64          `json:"totalPending"`
	TotalBudgeted     float64          `json:"totalBudgeted"`
	AvailableBudgeted float64          `json:"availableBudgeted"`
}

// itemDTO carries the amount as typed; it is coerced only on save.
type itemDTO struct {
	CategoryID   string    `json:"categoryId"`
	CategoryName string    `json:"categoryName"`
	Kind         core.Kind `json:"kind"`
	Amount       string    `json:"amount"`
	Paid         bool      `json:"paid"`
}

type budgetDTO struct {
	Month     string     `json:"month"`
	State     string     `json:"state"`
	Items     []itemDTO  `json:"items"`
	Summary   summaryDTO `json:"summary"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Notice    string     `json:"notice,omitempty"`
}

func newBudgetDTO(snap budget.Snapshot) budgetDTO {
	sum := snap.Summary
	items := make([]itemDTO, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, itemDTO(it))
	}
	return budgetDTO{
		Month: snap.Month.String(),
		State: snap.State.String(),
		Items: items,
		Summary: summaryDTO{
			TotalPaid:         sum.TotalPaid.Float(),
			TotalSalaryIncome: sum.TotalSalaryIncome.Float(),
			TotalAvailable:    sum.TotalAvailable.Float(),
			PendingItems:      sum.PendingItems,
			TotalPending:      sum.TotalPending.Float(),
			TotalBudgeted:     sum.TotalBudgeted.Float(),
			AvailableBudgeted: sum.AvailableBudgeted.Float(),
		},
		UpdatedAt: snap.UpdatedAt,
		Notice:    snap.Notice,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleBudgetAPI(w http.ResponseWriter, r *http.Request) {
	month, valid := monthParam(r)
	if !valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "month must be YYYY-MM"})
		return
	}
	session, err := s.manager.Session(s.userIDFor(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "budget is not available"})
		return
	}
	if month == "" {
		month = session.Month()
		if month == "" {
			month = core.CurrentMonth()
		}
	}
	if err := s.ensureLoaded(r, session, month, false); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to load budget",
			log.FieldUserID, session.UserID(), log.FieldMonth, month.String(), log.FieldError, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "categories could not be loaded"})
		return
	}
	writeJSON(w, http.StatusOK, newBudgetDTO(session.Snapshot()))
}
