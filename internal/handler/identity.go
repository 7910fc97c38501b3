package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
)

var errUnauthorized = errors.New("unauthorized")

// IdentityConfig configures how the signed-in user is recognized.
type IdentityConfig struct {
	// UserHeader carries the numeric user id set by the authentication
	// gateway. Requests without it are guests.
	UserHeader string
	// SignatureHeader carries the hex HMAC-SHA256 of the user header value.
	SignatureHeader string
	// Secret is the HMAC key shared with the gateway. When empty the user
	// header is trusted as-is.
	Secret []byte
}

// Identity resolves the user of a request from gateway headers.
type Identity struct {
	userHeader string
	sigHeader  string
	secret     []byte
}

// NewIdentity creates an Identity.
func NewIdentity(cfg IdentityConfig) *Identity {
	if cfg.UserHeader == "" {
		cfg.UserHeader = "X-User-ID"
	}
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = "X-User-Signature"
	}
	return &Identity{
		userHeader: cfg.UserHeader,
		sigHeader:  cfg.SignatureHeader,
		secret:     cfg.Secret,
	}
}

// UserID returns the id of the signed-in user, or 0 for a guest. It fails
// with errUnauthorized when the header is malformed or its signature does
// not match.
func (i *Identity) UserID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(i.userHeader))
	if raw == "" {
		return 0, nil
	}

	if len(i.secret) > 0 {
		got, err := hex.DecodeString(r.Header.Get(i.sigHeader))
		if err != nil {
			return 0, errUnauthorized
		}
		if subtle.ConstantTimeCompare(sign(i.secret, raw), got) != 1 {
			return 0, errUnauthorized
		}
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errUnauthorized
	}
	return id, nil
}

// Sign returns the signature header value the gateway sends for userID.
func Sign(secret []byte, userID int64) string {
	return hex.EncodeToString(sign(secret, strconv.FormatInt(userID, 10)))
}

func sign(secret []byte, value string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(value))
	return mac.Sum(nil)
}
