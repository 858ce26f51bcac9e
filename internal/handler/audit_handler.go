package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"admin-console/internal/middleware"
	"admin-console/internal/model"
	"admin-console/pkg/apierror"
)

type auditQuerier interface {
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

type AuditHandler struct {
	audit  auditQuerier
	admins adminVerifier
}

func NewAuditHandler(audit auditQuerier, admins adminVerifier) *AuditHandler {
	return &AuditHandler{audit: audit, admins: admins}
}

// List pages through the audit log. Only super admins may read it; the
// grant is resolved through the admin table, not the token claim.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	user, err := h.admins.Verify(withActor(r).Context(), claims)
	if err != nil {
		writeError(w, err)
		return
	}
	if !user.IsSuperAdmin {
		writeError(w, apierror.Forbidden("super admin role required"))
		return
	}

	query := r.URL.Query()
	items, meta, err := h.audit.Query(r.Context(), model.AuditQuery{
		Action:  strings.TrimSpace(query.Get("action")),
		ActorID: strings.TrimSpace(query.Get("actor_id")),
		Subject: strings.TrimSpace(query.Get("subject")),
		Status:  strings.TrimSpace(query.Get("status")),
		From:    strings.TrimSpace(query.Get("from")),
		To:      strings.TrimSpace(query.Get("to")),
		Page:    parseIntOrDefault(query.Get("page"), 1),
		Limit:   parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.AuditEntry{}
	}

	writeSuccess(w, http.StatusOK, model.AuditListData{Items: items, Meta: meta})
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}
