package handler

import (
	"context"
	"net/http"

	"admin-console/internal/middleware"
	"admin-console/internal/model"
	"admin-console/pkg/apierror"
)

type adminVerifier interface {
	Verify(ctx context.Context, claims *model.IDTokenClaims) (*model.VerifiedUser, error)
}

type VerifyHandler struct {
	service adminVerifier
}

func NewVerifyHandler(service adminVerifier) *VerifyHandler {
	return &VerifyHandler{service: service}
}

// Verify resolves the bearer's admin grant. It must sit behind
// BearerAuth.RequireIDToken.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	user, err := h.service.Verify(withActor(r).Context(), claims)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.VerifyData{User: *user})
}
