package http

import (
	"context"
	"errors"
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/ports"
)

func (s *Server) categoriesView(ctx context.Context, userID string) (categoriesPageView, error) {
	cats, err := s.directory.List(ctx, userID)
	if err != nil {
		return categoriesPageView{UserID: userID}, err
	}
	return categoriesPageView{Categories: newCategoryViews(cats), UserID: userID, Kind: string(core.KindExpense)}, nil
}

func (s *Server) handleCategoriesPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID := s.userIDFor(r)
	view, err := s.categoriesView(ctx, userID)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list categories",
			log.FieldUserID, userID, log.FieldError, err)
		view.Error = "Categories could not be loaded. Try again later."
	}
	view.Flash = flashMessages[r.URL.Query().Get("ok")]
	s.render(w, r, http.StatusOK, "categories.html", view)
}

// rejectCategory re-renders the page with the submitted values and a message.
func (s *Server) rejectCategory(w http.ResponseWriter, r *http.Request, status int, msg, name, kind string) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	view, err := s.categoriesView(ctx, s.userIDFor(r))
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to list categories", log.FieldError, err)
	}
	view.Error = msg
	view.Name = name
	view.Kind = kind
	s.render(w, r, status, "categories.html", view)
}

func validationMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		return "Name is required", true
	case errors.Is(err, core.ErrNameTooLong):
		return "Name is too long (max 100 characters)", true
	case errors.Is(err, core.ErrInvalidKind):
		return "Kind must be expense or income", true
	}
	return "", false
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	name := sanitizeInput(r.PostFormValue("name"))
	rawKind := sanitizeInput(r.PostFormValue("kind"))

	kind, err := core.ParseKind(rawKind)
	if err == nil {
		err = core.Category{Name: name, Kind: kind}.Validate()
	}
	if msg, invalid := validationMessage(err); invalid {
		s.rejectCategory(w, r, http.StatusUnprocessableEntity, msg, name, rawKind)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	userID := s.userIDFor(r)
	cat, err := s.directory.Create(ctx, userID, name, kind)
	if err != nil {
		if msg, invalid := validationMessage(err); invalid {
			s.rejectCategory(w, r, http.StatusUnprocessableEntity, msg, name, rawKind)
			return
		}
		s.errors.LogError(r.Context(), "Failed to create category", err, log.ComponentDirectory, log.OpCreate,
			log.NewFields().WithRequestID(requestID(r)))
		s.rejectCategory(w, r, http.StatusBadGateway, "The category could not be saved", name, rawKind)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Category created",
		log.FieldUserID, userID, log.FieldCategoryID, cat.ID)
	http.Redirect(w, r, "/categories?ok=created", http.StatusSeeOther)
}

// ownedCategory finds id in the requesting user's list.
func (s *Server) ownedCategory(ctx context.Context, r *http.Request, id string) (core.Category, bool, error) {
	cats, err := s.directory.List(ctx, s.userIDFor(r))
	if err != nil {
		return core.Category{}, false, err
	}
	for _, c := range cats {
		if c.ID == id {
			return c, true, nil
		}
	}
	return core.Category{}, false, nil
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id := r.PathValue("id")
	current, found, err := s.ownedCategory(ctx, r, id)
	if err != nil {
		s.errors.LogError(r.Context(), "Failed to list categories", err, log.ComponentDirectory, log.OpList,
			log.NewFields().WithRequestID(requestID(r)))
		BadGatewayError("Categories could not be loaded").Write(w)
		return
	}
	if !found {
		NotFoundError("Category not found").Write(w)
		return
	}

	name := sanitizeInput(r.PostFormValue("name"))
	rawKind := sanitizeInput(r.PostFormValue("kind"))
	kind := current.Kind
	if rawKind != "" {
		kind, err = core.ParseKind(rawKind)
	}
	if err == nil {
		err = core.Category{Name: name, Kind: kind}.Validate()
	}
	if msg, invalid := validationMessage(err); invalid {
		s.rejectCategory(w, r, http.StatusUnprocessableEntity, msg, "", "")
		return
	}

	switch err := s.directory.Update(ctx, id, name, kind); {
	case errors.Is(err, ports.ErrCategoryNotFound):
		NotFoundError("Category not found").Write(w)
		return
	case err != nil:
		s.errors.LogError(r.Context(), "Failed to update category", err, log.ComponentDirectory, log.OpUpdate,
			log.NewFields().WithRequestID(requestID(r)))
		s.rejectCategory(w, r, http.StatusBadGateway, "The category could not be saved", "", "")
		return
	}
	http.Redirect(w, r, "/categories?ok=updated", http.StatusSeeOther)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id := r.PathValue("id")
	_, found, err := s.ownedCategory(ctx, r, id)
	if err != nil {
		s.errors.LogError(r.Context(), "Failed to list categories", err, log.ComponentDirectory, log.OpList,
			log.NewFields().WithRequestID(requestID(r)))
		BadGatewayError("Categories could not be loaded").Write(w)
		return
	}
	if !found {
		NotFoundError("Category not found").Write(w)
		return
	}

	switch err := s.directory.Delete(ctx, id); {
	case errors.Is(err, ports.ErrCategoryNotFound):
		NotFoundError("Category not found").Write(w)
		return
	case err != nil:
		s.errors.LogError(r.Context(), "Failed to delete category", err, log.ComponentDirectory, log.OpDelete,
			log.NewFields().WithRequestID(requestID(r)))
		s.rejectCategory(w, r, http.StatusBadGateway, "The category could not be deleted", "", "")
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Category deleted",
		log.FieldCategoryID, id)
	http.Redirect(w, r, "/categories?ok=deleted", http.StatusSeeOther)
}
