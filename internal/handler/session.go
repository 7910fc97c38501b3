package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/bookstore/internal/domain/cart"
	"github.com/xenking/bookstore/internal/session"
)

type cartContextKey struct{}

func cartContext(ctx context.Context) (cart.Context, bool) {
	cc, ok := ctx.Value(cartContextKey{}).(cart.Context)
	return cc, ok
}

// withSession attaches the browser session and the signed-in user to the
// request. An unknown or expired session cookie starts a new session.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := h.identity.UserID(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}

		s, err := h.loadSession(ctx, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		cc := cart.Context{Session: s, UserID: userID}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, cartContextKey{}, cc)))
	})
}

func (h *Handler) loadSession(ctx context.Context, r *http.Request) (*session.Session, error) {
	c, err := r.Cookie(h.cfg.CookieName)
	if err != nil || c.Value == "" {
		return session.New(), nil
	}
	s, err := h.sessions.Load(ctx, c.Value)
	if errors.Is(err, session.ErrNotFound) {
		return session.New(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load session")
	}
	return s, nil
}

// saveSession persists the request session when it changed and refreshes
// the cookie. It must run before the response status is written.
func (h *Handler) saveSession(w http.ResponseWriter, r *http.Request) error {
	cc, ok := cartContext(r.Context())
	if !ok || !cc.Session.Modified() {
		return nil
	}
	if err := h.sessions.Save(r.Context(), cc.Session); err != nil {
		return errors.Wrap(err, "save session")
	}

	c := &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    cc.Session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.CookieTTL > 0 {
		c.MaxAge = int(h.cfg.CookieTTL.Seconds())
	}
	http.SetCookie(w, c)
	return nil
}
