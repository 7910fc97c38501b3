package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ListBooks returns the whole catalog.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toBookResponses(books))
}

// GetBook returns a single book.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.books.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toBookResponse(*b))
}

// ListCategories returns every category with its number of books.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.books.Categories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCategoryResponses(categories))
}

// ListCategoryBooks returns the books of a category. Dashes in the path
// stand for spaces, so "science-fiction" names "science fiction". An unknown
// category is a 404.
func (h *Handler) ListCategoryBooks(w http.ResponseWriter, r *http.Request) {
	name := strings.ReplaceAll(chi.URLParam(r, "name"), "-", " ")
	books, err := h.books.ListByCategory(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toBookResponses(books))
}
