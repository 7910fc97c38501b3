package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookstore/internal/domain/cart"
	"github.com/xenking/bookstore/internal/domain/catalog"
	"github.com/xenking/bookstore/internal/domain/checkout"
	"github.com/xenking/bookstore/internal/domain/order"
)

const maxBodySize = 1 << 20

// badRequestError reports a request that could not be decoded.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// respond saves the session, then writes body as JSON. A failed save turns
// the response into a 500 so that the client never sees a state that was
// not stored.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, body any) {
	if err := h.saveSession(w, r); err != nil {
		zctx.From(r.Context()).Error("Session save failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(w, r, status, body)
}

// fail maps err to a status code and writes the error body. The session is
// still saved so that lazily created carts survive. Cart mutations that fail
// leave the session as it was, so a failed request never stores new cart
// contents.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())
	if serr := h.saveSession(w, r); serr != nil {
		lg.Warn("Session save failed", zap.Error(serr))
	}

	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Error(err))
		msg = "internal server error"
	}
	respondError(w, status, msg)
}

func errorStatus(err error) (int, string) {
	var (
		badRequest      *badRequestError
		invalidQuantity *cart.InvalidQuantityError
		invalidShipping *checkout.InvalidShippingError
	)
	switch {
	case errors.As(err, &badRequest):
		return http.StatusBadRequest, badRequest.msg
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, order.ErrNotFound), errors.Is(err, errNoShipping):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &invalidQuantity):
		return http.StatusUnprocessableEntity, invalidQuantity.Error()
	case errors.As(err, &invalidShipping):
		return http.StatusUnprocessableEntity, invalidShipping.Error()
	case errors.Is(err, checkout.ErrMissingShippingData), errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Warn("Encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Code: status, Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		return &badRequestError{msg: "invalid JSON body"}
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &badRequestError{msg: "invalid id " + strconv.Quote(raw)}
	}
	return id, nil
}
