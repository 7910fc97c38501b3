package handler

import (
	"net/http"
)

// GetCart returns the priced cart of the session.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cc, _ := cartContext(r.Context())
	c, err := h.carts.Open(cc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	priced, err := c.Total(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, toCartResponse(priced, c.Size()))
}

// AddItem adds a book to the cart. Adding a book already in the cart keeps
// its quantity. The response carries the number of distinct books.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	cc, _ := cartContext(r.Context())
	c, err := h.carts.Open(cc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.carts.Add(r.Context(), c, req.ProductID, req.Quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, sizeResponse{Qty: c.Size()})
}

// UpdateItem sets the quantity of a book, adding it when absent.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	cc, _ := cartContext(r.Context())
	c, err := h.carts.Open(cc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := c.Update(r.Context(), id, req.Quantity); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, sizeResponse{Qty: req.Quantity})
}

// DeleteItem removes a book from the cart. Removing an absent book succeeds.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	cc, _ := cartContext(r.Context())
	c, err := h.carts.Open(cc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := c.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, deleteResponse{Product: id})
}

// RestoreCart merges the saved cart of the signed-in user into the session
// cart. The authentication gateway calls it right after sign-in.
func (h *Handler) RestoreCart(w http.ResponseWriter, r *http.Request) {
	cc, _ := cartContext(r.Context())
	if !cc.Authenticated() {
		h.fail(w, r, errUnauthorized)
		return
	}
	c, err := h.carts.Restore(r.Context(), cc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, sizeResponse{Qty: c.Size()})
}
