package http

import (
	"errors"
	"log/slog"
	"net/http"

	"potrosnja/internal/core"
)

type categoriesPageData struct {
	User       core.User
	Categories []core.Category
	Error      string
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	cats, err := s.expenses.ListCategories(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories failed", "error", err, "user_id", user.ID)
		http.Error(w, "list categories failed", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "categories.html", categoriesPageData{User: user, Categories: cats})
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	_, err := s.expenses.AddCategory(r.Context(), user.ID, name)
	if errors.Is(err, core.ErrEmptyName) {
		cats, listErr := s.expenses.ListCategories(r.Context(), user.ID)
		if listErr != nil {
			slog.ErrorContext(r.Context(), "List categories failed", "error", listErr, "user_id", user.ID)
		}
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "categories.html", categoriesPageData{
			User:       user,
			Categories: cats,
			Error:      "Naziv kategorije ne smije biti prazan.",
		})
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Add category failed", "error", err, "user_id", user.ID)
		http.Error(w, "add category failed", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/categories", http.StatusSeeOther)
}

// handleDeleteCategory removes the user's category. Deleting someone
// else's category or a missing id is a silent no-op redirect, never a
// hint about what exists.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	id, err := pathID(r)
	if err != nil {
		http.Error(w, "bad category id", http.StatusBadRequest)
		return
	}

	err = s.expenses.DeleteCategory(r.Context(), user.ID, id)
	if err != nil && !errors.Is(err, core.ErrNotFoundOrForbidden) {
		slog.ErrorContext(r.Context(), "Delete category failed", "error", err, "user_id", user.ID, "category_id", id)
		http.Error(w, "delete category failed", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/categories", http.StatusSeeOther)
}
