// Package auth verifies the HS256 bearer tokens that identify the owner of
// a ledger.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// MinSecretLength is the shortest accepted signing secret.
	MinSecretLength = 32

	// QueryToken is the query parameter carrying the token on upgrades.
	QueryToken = "access_token"
)

var (
	ErrMissingToken = errors.New("authorization token required")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrShortSecret  = fmt.Errorf("jwt secret must be at least %d characters", MinSecretLength)
)

// Claims carry the owner in the standard subject claim.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewVerifier builds a verifier. Empty issuer or audience are not checked.
func NewVerifier(secret, issuer, audience string) (*Verifier, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrShortSecret
	}
	return &Verifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}, nil
}

// Verify parses and validates a token and returns its claims. Tokens must
// be signed with HS256, carry a subject and an expiry.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// Issue signs a token for subject valid for ttl.
func (v *Verifier) Issue(subject, email string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject is required")
	}
	now := v.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest reads "Authorization: Bearer <token>".
func TokenFromRequest(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: invalid authorization header format", ErrMissingToken)
	}
	return strings.TrimSpace(parts[1]), nil
}

// TokenFromUpgrade is TokenFromRequest for WebSocket upgrades. Browsers
// cannot set headers on them, so the access_token query parameter is
// accepted when no Authorization header is present.
func TokenFromUpgrade(r *http.Request) (string, error) {
	if r.Header.Get("Authorization") != "" {
		return TokenFromRequest(r)
	}
	if t := r.URL.Query().Get(QueryToken); t != "" {
		return t, nil
	}
	return "", ErrMissingToken
}

type ctxKey struct{}

// WithOwner stores the authenticated owner in ctx.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ownerID)
}

// OwnerFromContext returns the owner set by Middleware.
func OwnerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Middleware rejects requests without a valid bearer header and stores
// the token's subject as the request owner.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return v.middleware(next, TokenFromRequest)
}

// UpgradeMiddleware is Middleware for the WebSocket route, where the token
// may also come from the query string.
func (v *Verifier) UpgradeMiddleware(next http.Handler) http.Handler {
	return v.middleware(next, TokenFromUpgrade)
}

func (v *Verifier) middleware(next http.Handler, extract func(*http.Request) (string, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := extract(r)
		if err != nil {
			unauthorized(w, err.Error())
			return
		}
		claims, err := v.Verify(raw)
		if err != nil {
			slog.WarnContext(r.Context(), "Rejected token",
				"component", "auth",
				"path", r.URL.Path,
				"error", err)
			unauthorized(w, ErrInvalidToken.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), claims.Subject)))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="gastos"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
