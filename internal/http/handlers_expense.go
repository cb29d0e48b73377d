package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"potrosnja/internal/core"
)

// maxReceiptBytes bounds uploaded receipt images.
const maxReceiptBytes = 10 << 20

type expenseFormData struct {
	User       core.User
	Categories []core.Category
	Error      string
}

type expensesPageData struct {
	User     core.User
	Month    string
	Expenses []core.Expense
	Total    core.Money
}

type expenseDetailData struct {
	User    core.User
	Expense core.Expense
}

func (s *Server) handleExpenseForm(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	cats, err := s.expenses.ListCategories(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories failed", "error", err, "user_id", user.ID)
		http.Error(w, "list categories failed", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "expense_new.html", expenseFormData{User: user, Categories: cats})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	category := sanitizeInput(r.FormValue("category"))
	amount := sanitizeInput(r.FormValue("amount"))

	var (
		imageName  string
		imageBytes []byte
	)
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		imageBytes, err = io.ReadAll(io.LimitReader(file, maxReceiptBytes))
		if err != nil {
			slog.ErrorContext(r.Context(), "Read receipt upload failed", "error", err, "user_id", user.ID)
			http.Error(w, "read upload failed", http.StatusInternalServerError)
			return
		}
		// Only the base name is stored, never a client-supplied path.
		imageName = filepath.Base(header.Filename)
	}

	_, err := s.expenses.AddExpense(r.Context(), user.ID, category, amount, imageName, imageBytes)
	if err != nil {
		if errors.Is(err, core.ErrMissingField) || errors.Is(err, core.ErrInvalidAmount) {
			cats, listErr := s.expenses.ListCategories(r.Context(), user.ID)
			if listErr != nil {
				slog.ErrorContext(r.Context(), "List categories failed", "error", listErr, "user_id", user.ID)
			}
			s.renderStatus(w, r, http.StatusUnprocessableEntity, "expense_new.html", expenseFormData{
				User:       user,
				Categories: cats,
				Error:      "Kategorija i ispravan iznos su obavezni.",
			})
			return
		}
		slog.ErrorContext(r.Context(), "Add expense failed", "error", err, "user_id", user.ID)
		http.Error(w, "add expense failed", http.StatusInternalServerError)
		return
	}

	s.invalidateUserStats(user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleExpenses lists the user's expenses for the selected month.
func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	month := monthParam(r)

	list, err := s.expenses.ExpensesForMonth(r.Context(), user.ID, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses failed", "error", err, "user_id", user.ID, "month", month)
		http.Error(w, "list expenses failed", http.StatusInternalServerError)
		return
	}

	var total core.Money
	for _, e := range list {
		total.Cents += e.Amount.Cents
	}

	s.render(w, r, "expenses.html", expensesPageData{
		User:     user,
		Month:    month,
		Expenses: list,
		Total:    total,
	})
}

func (s *Server) handleExpenseDetail(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := pathID(r)
	if err != nil {
		http.Error(w, "bad expense id", http.StatusBadRequest)
		return
	}

	e, err := s.expenses.GetExpense(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Get expense failed", "error", err, "expense_id", id)
		http.Error(w, "get expense failed", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "expense_detail.html", expenseDetailData{User: user, Expense: e})
}

// handleReceipt serves the receipt image inline.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	s.serveReceipt(w, r, false)
}

// handleReceiptDownload serves the receipt image as an attachment.
func (s *Server) handleReceiptDownload(w http.ResponseWriter, r *http.Request) {
	s.serveReceipt(w, r, true)
}

func (s *Server) serveReceipt(w http.ResponseWriter, r *http.Request, download bool) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "bad expense id", http.StatusBadRequest)
		return
	}

	name, data, err := s.expenses.GetExpenseImage(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Get receipt failed", "error", err, "expense_id", id)
		http.Error(w, "get receipt failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	if download {
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	} else {
		w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	}
	_, _ = w.Write(data)
}
