package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type privilegeKey struct{}

// ErrInvalidToken indicates a bearer token that failed signature or claim validation.
var ErrInvalidToken = errors.New("invalid bearer token")

// AuthConfig holds the signing key and role used to derive caller privilege.
// With no signing key every caller is unprivileged.
type AuthConfig struct {
	SigningKey string `toml:"signing_key"`
	Issuer     string `toml:"issuer"`
	AdminRole  string `toml:"admin_role"`
}

// AuthEnv maps auth config fields to environment variable names for override injection.
type AuthEnv struct {
	SigningKey string
	Issuer     string
	AdminRole  string
}

// Finalize applies defaults and environment variable overrides.
func (c *AuthConfig) Finalize(env *AuthEnv) error {
	if c.AdminRole == "" {
		c.AdminRole = "admin"
	}
	if env != nil {
		c.loadEnv(env)
	}
	return nil
}

func (c *AuthConfig) loadEnv(env *AuthEnv) {
	if env.SigningKey != "" {
		if v := os.Getenv(env.SigningKey); v != "" {
			c.SigningKey = v
		}
	}
	if env.Issuer != "" {
		if v := os.Getenv(env.Issuer); v != "" {
			c.Issuer = v
		}
	}
	if env.AdminRole != "" {
		if v := os.Getenv(env.AdminRole); v != "" {
			c.AdminRole = v
		}
	}
}

// Merge overwrites non-zero fields from overlay.
func (c *AuthConfig) Merge(overlay *AuthConfig) {
	if overlay.SigningKey != "" {
		c.SigningKey = overlay.SigningKey
	}
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.AdminRole != "" {
		c.AdminRole = overlay.AdminRole
	}
}

// Claims carries the caller's roles.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Privileged reports whether the claims grant role.
func (c *Claims) Privileged(role string) bool {
	return slices.Contains(c.Roles, role)
}

// ParseClaims validates an HS256 token against cfg and returns its claims.
func ParseClaims(cfg *AuthConfig, token string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.SigningKey), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// Privilege returns middleware that marks the request context privileged when the
// bearer token carries the configured admin role. Requests without a token proceed
// unprivileged; requests with an invalid token are rejected with 401.
func Privilege(cfg *AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || cfg.SigningKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ParseClaims(cfg, strings.TrimSpace(token))
			if err != nil {
				logger.Warn("rejected bearer token", "error", err, "uri", r.URL.RequestURI())
				http.Error(w, ErrInvalidToken.Error(), http.StatusUnauthorized)
				return
			}

			if claims.Privileged(cfg.AdminRole) {
				r = r.WithContext(WithPrivilege(r.Context(), true))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrivilege returns a context carrying the caller privilege flag.
func WithPrivilege(ctx context.Context, privileged bool) context.Context {
	return context.WithValue(ctx, privilegeKey{}, privileged)
}

// IsPrivileged reports whether the request context was marked privileged.
func IsPrivileged(ctx context.Context) bool {
	v, _ := ctx.Value(privilegeKey{}).(bool)
	return v
}
