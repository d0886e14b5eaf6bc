package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig controls identity resolution. Identity only: the approver id
// attached to approvals comes from here, but roles are taken from the request
// and never verified against it.
type AuthConfig struct {
	JWTSecret string
	Logger    *log.Logger
}

type Principal struct {
	ActorID string
	Roles   []string
	Source  string
}

type principalKey struct{}

func (c AuthConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Principal{ActorID: "local-user", Source: "default"}
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

func resolveJWT(token, secret string) (Principal, bool) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, false
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Principal{}, false
	}
	return Principal{ActorID: claims.Subject, Roles: claims.Roles, Source: "jwt"}, true
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newIdentityMiddleware attaches a Principal to every request. It never
// rejects: unauthenticated callers fall back to the X-Actor-Id header or the
// local-user default.
func newIdentityMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := Principal{ActorID: "local-user", Source: "default"}
			if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
				if token, ok := bearerToken(authz); ok {
					if resolved, ok := resolveJWT(token, cfg.JWTSecret); ok {
						p = resolved
					} else {
						cfg.logger().Printf("ignoring unresolvable bearer token from %s", req.RemoteAddr)
					}
				}
			}
			if p.Source == "default" {
				if actor := strings.TrimSpace(req.Header.Get("X-Actor-Id")); actor != "" {
					p = Principal{ActorID: actor, Source: "header"}
				}
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), p)))
		})
	}
}
