package handler

import (
	"net/http"

	"admin-console/internal/middleware"
	"admin-console/internal/model"
	"admin-console/internal/service"
)

func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIP(r)}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.UserID = claims.UserID
	actor.Email = claims.Email

	return actor
}

// withActor returns a shallow copy of r whose context carries the caller.
func withActor(r *http.Request) *http.Request {
	return r.WithContext(service.WithActor(r.Context(), actorFromRequest(r)))
}
