package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agentcourt/clearinghouse/internal/application"
)

type contextKey string

const actorKey contextKey = "actor"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), contextKey("request_id"), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type agentClaims struct {
	Address string `json:"address"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// authMiddleware resolves the calling principal. With a signing secret
// configured the bearer token must be a valid HS256 JWT whose subject (or
// address claim) is the agent address. Without one the raw bearer value is
// taken as the address, which keeps local development and tests keyless.
func authMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", requestIDFromContext(r.Context()))
				return
			}
			raw := strings.TrimSpace(auth[7:])
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "empty bearer token", requestIDFromContext(r.Context()))
				return
			}
			subject := raw
			role := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Actor-Role")))
			if jwtSecret != "" {
				claims := &agentClaims{}
				parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
					if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
						return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
					}
					return []byte(jwtSecret), nil
				}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
				if err != nil || !parsed.Valid {
					writeError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token", requestIDFromContext(r.Context()))
					return
				}
				subject = claims.Address
				if subject == "" {
					subject = claims.Subject
				}
				if claims.Role != "" {
					role = claims.Role
				}
				if subject == "" {
					writeError(w, http.StatusUnauthorized, "unauthorized", "token carries no subject", requestIDFromContext(r.Context()))
					return
				}
			}
			if role == "" {
				role = "agent"
			}
			actor := application.Actor{SubjectID: subject, Role: role, RequestID: requestIDFromContext(r.Context()), IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key"))}
			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorFromContext(ctx context.Context) application.Actor {
	if v := ctx.Value(actorKey); v != nil {
		if a, ok := v.(application.Actor); ok {
			return a
		}
	}
	return application.Actor{}
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(contextKey("request_id")); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
