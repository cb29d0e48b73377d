package http

import (
	"log/slog"
	"net/http"
	"time"

	"potrosnja/internal/core"
)

type dashboardData struct {
	User   core.User
	Month  string
	Total  core.Money
	Max    core.Money
	Recent []core.Expense
}

// handleDashboard shows the current month at a glance: the running
// total, the largest single expense and the latest entries.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	sum, err := s.cachedMonthSummary(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month summary failed", "error", err, "user_id", user.ID)
		http.Error(w, "month summary failed", http.StatusInternalServerError)
		return
	}

	recent, err := s.expenses.RecentExpenses(r.Context(), user.ID, 0)
	if err != nil {
		slog.ErrorContext(r.Context(), "Recent expenses failed", "error", err, "user_id", user.ID)
		http.Error(w, "recent expenses failed", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "index.html", dashboardData{
		User:   user,
		Month:  core.Today(time.Now()).YearMonth(),
		Total:  sum.Total,
		Max:    sum.Max,
		Recent: recent,
	})
}

func (s *Server) handleStatsPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "stats.html", struct{ User core.User }{User: currentUser(r.Context())})
}

type categoryTotalJSON struct {
	Category   string `json:"category"`
	Total      string `json:"total"`
	TotalCents int64  `json:"total_cents"`
}

type monthTotalJSON struct {
	Month      string `json:"month"`
	Total      string `json:"total"`
	TotalCents int64  `json:"total_cents"`
}

type expenseJSON struct {
	ID          int64  `json:"id"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	Date        string `json:"date"`
}

// handleStatsCategories sums expenses per category. With ?month=YYYY-MM
// only that month counts; ?all=1 covers all time.
func (s *Server) handleStatsCategories(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	month := ""
	if r.URL.Query().Get("all") != "1" {
		month = monthParam(r)
	}

	totals, err := s.expenses.TotalsByCategory(r.Context(), user.ID, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Totals by category failed", "error", err, "user_id", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "totals by category failed")
		return
	}

	out := make([]categoryTotalJSON, 0, len(totals))
	for _, t := range totals {
		out = append(out, categoryTotalJSON{
			Category:   t.Category,
			Total:      t.Total.String(),
			TotalCents: t.Total.Cents,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStatsMonths sums all of the user's expenses per month, oldest
// month first.
func (s *Server) handleStatsMonths(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	totals, err := s.expenses.TotalsByMonth(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Totals by month failed", "error", err, "user_id", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "totals by month failed")
		return
	}

	out := make([]monthTotalJSON, 0, len(totals))
	for _, t := range totals {
		out = append(out, monthTotalJSON{
			Month:      t.Month,
			Total:      t.Total.String(),
			TotalCents: t.Total.Cents,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatsTop(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	list, err := s.expenses.TopExpenses(r.Context(), user.ID, countParam(r, 5))
	if err != nil {
		slog.ErrorContext(r.Context(), "Top expenses failed", "error", err, "user_id", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "top expenses failed")
		return
	}
	writeJSON(w, http.StatusOK, expensesToJSON(list))
}

func (s *Server) handleStatsRecent(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	list, err := s.expenses.RecentExpenses(r.Context(), user.ID, countParam(r, 5))
	if err != nil {
		slog.ErrorContext(r.Context(), "Recent expenses failed", "error", err, "user_id", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "recent expenses failed")
		return
	}
	writeJSON(w, http.StatusOK, expensesToJSON(list))
}

func expensesToJSON(list []core.Expense) []expenseJSON {
	out := make([]expenseJSON, 0, len(list))
	for _, e := range list {
		out = append(out, expenseJSON{
			ID:          e.ID,
			Category:    e.Category,
			Amount:      e.Amount.String(),
			AmountCents: e.Amount.Cents,
			Date:        e.Date.String(),
		})
	}
	return out
}
