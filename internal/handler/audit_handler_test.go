package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"admin-console/internal/middleware"
	"admin-console/internal/model"
	"admin-console/internal/service"
)

type fakeAuditLog struct {
	query model.AuditQuery
	actor model.AuditActor
}

func (f *fakeAuditLog) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	f.query = query
	return []model.AuditEntry{{
		Action:     model.AuditSignIn,
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:     model.AuditStatusFailure,
		Subject:    "admin@x.com",
	}}, model.Meta{Page: query.Page, Limit: query.Limit, Total: 1, TotalPages: 1}, nil
}

type actorRecorder struct {
	fakeAdminVerifier
	log *fakeAuditLog
}

func (a actorRecorder) Verify(ctx context.Context, claims *model.IDTokenClaims) (*model.VerifiedUser, error) {
	a.log.actor = service.ActorFromContext(ctx)
	return a.fakeAdminVerifier.Verify(ctx, claims)
}

func TestAuditHandlerList(t *testing.T) {
	t.Parallel()

	validator := fakeValidator{
		"super-token": {UserID: "u0", Email: "root@x.com"},
		"admin-token": {UserID: "u1"},
		"other-token": {UserID: "u9"},
	}

	call := func(t *testing.T, token string, target string) (*httptest.ResponseRecorder, *fakeAuditLog) {
		t.Helper()

		log := &fakeAuditLog{}
		verifier := actorRecorder{log: log, fakeAdminVerifier: fakeAdminVerifier{users: map[string]model.VerifiedUser{
			"u0": {ID: "u0", Role: "SUPER_ADMIN", IsSuperAdmin: true},
			"u1": {ID: "u1", Role: "ADMIN", AdminAccess: []string{"ADMIN"}},
		}}}
		h := middleware.NewBearerAuth(validator).RequireIDToken(http.HandlerFunc(NewAuditHandler(log, verifier).List))

		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.RemoteAddr = "198.51.100.4:5555"
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec, log
	}

	t.Run("super admin reads filtered entries", func(t *testing.T) {
		rec, log := call(t, "super-token", "/admin-auth/audit?action=sign_in&status=failure&page=2&limit=abc")
		require.Equal(t, http.StatusOK, rec.Code)

		require.Equal(t, model.AuditQuery{Action: "sign_in", Status: "failure", Page: 2, Limit: 50}, log.query)
		require.Equal(t, model.AuditActor{UserID: "u0", Email: "root@x.com", IP: "198.51.100.4"}, log.actor)

		env := decodeEnvelope(t, rec)
		require.True(t, env.Success)
		var data model.AuditListData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.Len(t, data.Items, 1)
		require.Equal(t, "admin@x.com", data.Items[0].Subject)
		require.Equal(t, 2, data.Meta.Page)
	})

	t.Run("plain admin is forbidden", func(t *testing.T) {
		rec, log := call(t, "admin-token", "/admin-auth/audit")
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "FORBIDDEN", decodeEnvelope(t, rec).Error.Code)
		require.Zero(t, log.query)
	})

	t.Run("non admin is refused", func(t *testing.T) {
		rec, _ := call(t, "other-token", "/admin-auth/audit")
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "NOT_AUTHORIZED", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec, _ := call(t, "", "/admin-auth/audit")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
