package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"admin-console/internal/model"
)

type tokenValidator interface {
	ValidateIDToken(tokenString string) (*model.IDTokenClaims, error)
}

type contextKey string

const idTokenClaimsContextKey contextKey = "id_token_claims"

// BearerAuth guards authority endpoints that take an ID token.
type BearerAuth struct {
	validator tokenValidator
}

func NewBearerAuth(validator tokenValidator) *BearerAuth {
	return &BearerAuth{validator: validator}
}

func (m *BearerAuth) RequireIDToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			writeUnauthorized(w, "missing or invalid authorization header")
			return
		}

		claims, err := m.validator.ValidateIDToken(token)
		if err != nil {
			writeUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), idTokenClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func ClaimsFromContext(ctx context.Context) (*model.IDTokenClaims, bool) {
	claims, ok := ctx.Value(idTokenClaimsContextKey).(*model.IDTokenClaims)
	return claims, ok
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "UNAUTHORIZED",
			Message: message,
		},
	})
}
