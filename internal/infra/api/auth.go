package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/infra/logging"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

const issuer = "playlist-bot"

// ServiceClaims identify the front end calling the internal API.
type ServiceClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// AuthManager mints and verifies HS256 service tokens.
type AuthManager struct {
	secret []byte
	now    func() time.Time
}

func NewAuthManager(secret string) *AuthManager {
	return &AuthManager{secret: []byte(secret), now: time.Now}
}

// Mint signs a token for subject. A zero ttl issues a token without expiry.
func (a *AuthManager) Mint(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("empty subject")
	}
	now := a.now()
	claims := ServiceClaims{
		Scope: "core",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*ServiceClaims, error) {
	// Authorization: Bearer <jwt>
	hdr := r.Header.Get("Authorization")
	if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return nil, ErrMissingToken
	}
	return a.Parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) Parse(tok string) (*ServiceClaims, error) {
	if len(a.secret) == 0 {
		return nil, ErrInvalidToken
	}
	claims := &ServiceClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RequireService rejects requests without a valid service token.
func RequireService(a *AuthManager, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.ParseFromRequest(r)
			if err != nil {
				l := logging.With(r.Context(), logger)
				l.Warn().Err(err).Str("path", r.URL.Path).Msg("api auth rejected")
				writeAuthError(w, err)
				return
			}
			l := logging.With(r.Context(), logger)
			l.Trace().Str("client", claims.Subject).Str("path", r.URL.Path).Msg("api client authenticated")
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="playlist-bot"`)
	w.WriteHeader(http.StatusUnauthorized)
	code := "invalid_token"
	if errors.Is(err, ErrMissingToken) {
		code = "missing_token"
	}
	_, _ = w.Write([]byte(`{"error":{"code":"` + code + `"}}`))
}
