// Package handler exposes the bookstore over HTTP/JSON. Handlers are thin:
// they decode the request, call the cart and checkout domain, and encode the
// result.
package handler

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/bookstore/internal/domain/cart"
	"github.com/xenking/bookstore/internal/domain/catalog"
	"github.com/xenking/bookstore/internal/domain/checkout"
	"github.com/xenking/bookstore/internal/session"
	"github.com/xenking/bookstore/pkg/httpmiddleware"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// CookieName is the name of the session cookie.
	CookieName string
	// CookieTTL is the cookie Max-Age. Zero makes it a browser-session cookie.
	CookieTTL time.Duration
	// SecureCookie restricts the session cookie to HTTPS.
	SecureCookie bool
}

// Handler serves the catalog, cart and checkout API.
type Handler struct {
	books    catalog.Repository
	carts    *cart.Service
	checkout *checkout.Pipeline
	sessions session.Store
	identity *Identity
	cfg      Config
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	books catalog.Repository,
	carts *cart.Service,
	pipeline *checkout.Pipeline,
	sessions session.Store,
	identity *Identity,
) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = "sessionid"
	}
	return &Handler{
		books:    books,
		carts:    carts,
		checkout: pipeline,
		sessions: sessions,
		identity: identity,
		cfg:      cfg,
	}
}

// Router returns the API routes. checkoutLimits wrap the checkout routes
// only.
func (h *Handler) Router(checkoutLimits ...httpmiddleware.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/books", h.ListBooks)
		r.Get("/books/{id}", h.GetBook)
		r.Get("/categories", h.ListCategories)
		r.Get("/categories/{name}/books", h.ListCategoryBooks)

		r.Group(func(r chi.Router) {
			r.Use(h.withSession)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Post("/items", h.AddItem)
				r.Put("/items/{id}", h.UpdateItem)
				r.Delete("/items/{id}", h.DeleteItem)
				r.Post("/restore", h.RestoreCart)
			})
			r.Route("/checkout", func(r chi.Router) {
				for _, mw := range checkoutLimits {
					r.Use(mw)
				}
				r.Get("/shipping", h.GetShipping)
				r.Post("/shipping", h.CollectShipping)
				r.Post("/commit", h.Commit)
			})
		})
	})
	return r
}
