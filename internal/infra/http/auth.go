package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"telegram-invoicing-bot/internal/domain"
)

// RoleReviewer is the only role allowed to activate companies.
const RoleReviewer = "reviewer"

// ReviewerClaims identify the back-office user approving payment proofs.
type ReviewerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth signs and verifies HS256 bearer tokens for the reviewer API.
type Auth struct {
	secret []byte
	now    func() time.Time
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret), now: time.Now}
}

// Mint issues a reviewer token; used by ops tooling and tests.
func (a *Auth) Mint(subject string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := a.now()
	claims := ReviewerClaims{
		Role: RoleReviewer,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates "Authorization: Bearer <jwt>".
func (a *Auth) Parse(r *http.Request) (*ReviewerClaims, error) {
	hdr := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(hdr, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tok) == "" {
		return nil, domain.ErrUnauthorized
	}
	claims := &ReviewerClaims{}
	tkn, err := jwt.ParseWithClaims(strings.TrimSpace(tok), claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid || claims.Role != RoleReviewer {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

// Middleware rejects requests without a valid reviewer token. An unset secret
// disables the API entirely.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) == 0 {
			writeError(w, http.StatusForbidden, "reviewer api disabled")
			return
		}
		if _, err := a.Parse(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
