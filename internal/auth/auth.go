// Package auth verifies identity-provider tokens. Verification only decides
// whether a caller is signed in; anonymous callers are never rejected here.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when a request carries no bearer token.
var ErrNoToken = errors.New("no bearer token")

type contextKey string

const identityKey contextKey = "identity"

// Identity is a verified caller.
type Identity struct {
	Subject string
	Email   string
}

// Verifier checks a raw bearer token.
type Verifier struct {
	keyfunc   jwt.Keyfunc
	keyfuncFn func(ctx context.Context) jwt.Keyfunc
	methods   []string
	issuer    string
	audience  string
	leeway    time.Duration
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// New builds a Verifier from cfg. It returns (nil, nil) when no verification
// method is configured. A JWKS URL takes precedence over an HMAC secret.
func New(cfg config.AuthConfig) (*Verifier, error) {
	v := &Verifier{issuer: cfg.Issuer, audience: cfg.Audience, leeway: 30 * time.Second}

	switch {
	case cfg.JWKSURL != "":
		// Start even if the identity provider is not reachable yet.
		storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
			Client:                    &http.Client{Timeout: 10 * time.Second},
			NoErrorReturnFirstHTTPReq: true,
			RefreshInterval:           time.Hour,
			RefreshErrorHandler: func(_ context.Context, err error) {
				slog.Error("JWKS refresh failed", "url", cfg.JWKSURL, "error", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("creating JWKS storage: %w", err)
		}
		k, err := keyfunc.New(keyfunc.Options{Storage: storage})
		if err != nil {
			return nil, fmt.Errorf("creating keyfunc: %w", err)
		}
		v.keyfuncFn = k.KeyfuncCtx
		v.methods = []string{"RS256", "ES256", "EdDSA"}
	case cfg.HMACSecret != "":
		secret := []byte(cfg.HMACSecret)
		v.keyfunc = func(*jwt.Token) (interface{}, error) { return secret, nil }
		v.methods = []string{"HS256"}
	default:
		return nil, nil
	}
	return v, nil
}

// Verify parses and validates token and returns its subject.
func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	kf := v.keyfunc
	if v.keyfuncFn != nil {
		kf = v.keyfuncFn(ctx)
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, kf, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("token has no subject")
	}
	return &Identity{Subject: sub, Email: claims.Email}, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrNoToken
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(parts[1]), nil
}

// Middleware attaches the verified identity to the request context when a
// valid token is present. Invalid or missing tokens leave the request
// anonymous. A nil Verifier makes every request anonymous.
func (v *Verifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				next.ServeHTTP(w, r)
				return
			}
			tok, err := BearerToken(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			id, err := v.Verify(r.Context(), tok)
			if err != nil {
				slog.Debug("Token rejected, treating caller as anonymous", "error", err, "remote_addr", r.RemoteAddr)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the verified caller, or nil for anonymous requests.
func IdentityFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}
