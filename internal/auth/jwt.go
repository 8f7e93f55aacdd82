// internal/auth/jwt.go
//
// Bearer-token verification.
//
// Context
// -------
// Sign-in is handled by an external identity provider; this service only
// verifies the HS256 access tokens it issues and trusts the `sub` claim
// as the user id.  Issuer and audience are checked when configured.
//
// Workflow
// --------
//  1. Require pulls `Authorization: Bearer <jwt>` from the request.
//  2. Verify parses with the shared secret, pinning the HMAC method so a
//     token cannot downgrade to `none` or switch to RSA.
//  3. The subject lands in the context via WithUser.
//
// Notes
// -----
// • Failures answer 401 with a generic JSON body; the reason is logged at
//   debug only.
// • Oxford commas, two spaces after periods.

package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrNoToken      = errors.New("auth: bearer token missing")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Verifier checks access tokens.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

func NewVerifier(secret, issuer, audience string) (*Verifier, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: jwt secret must be at least 32 bytes")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, audience: audience, leeway: 30 * time.Second}, nil
}

// Verify returns the token subject.
func (v *Verifier) Verify(raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Require rejects requests without a valid bearer token.
func (v *Verifier) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r)
		if !ok {
			unauthorized(w, ErrNoToken)
			return
		}
		sub, err := v.Verify(raw)
		if err != nil {
			unauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), sub)))
	})
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

func unauthorized(w http.ResponseWriter, err error) {
	zap.L().Debug("auth rejected", zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="launchpad"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"authentication required"}`))
}
