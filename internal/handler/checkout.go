package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

var errNoShipping = errors.New("no shipping details")

// GetShipping returns the details to prefill the shipping form with: those
// collected in this session or, for a signed-in user, those saved last time.
func (h *Handler) GetShipping(w http.ResponseWriter, r *http.Request) {
	cc, _ := cartContext(r.Context())
	s, ok, err := h.checkout.PrefillShipping(r.Context(), cc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		h.fail(w, r, errNoShipping)
		return
	}
	h.respond(w, r, http.StatusOK, shippingRequest(s))
}

// CollectShipping stores the shipping details for the next commit.
func (h *Handler) CollectShipping(w http.ResponseWriter, r *http.Request) {
	var req shippingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	cc, _ := cartContext(r.Context())
	if err := h.checkout.CollectShipping(r.Context(), cc, req.toDomain()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, req)
}

// Commit places the order. Billing details are optional and never charged.
//
// Once the order is written the request has succeeded: a failed session save
// is logged and the order is still returned with 201, so that clients do not
// retry and place it twice.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req billingRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	cc, _ := cartContext(r.Context())
	o, err := h.checkout.Commit(r.Context(), cc, req.toDomain())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.saveSession(w, r); err != nil {
		zctx.From(r.Context()).Error("Session save failed after order was placed",
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
	respondJSON(w, r, http.StatusCreated, toOrderResponse(o))
}
