package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"admin-console/internal/authctx"
	"admin-console/internal/gate"
	"admin-console/internal/model"
	"admin-console/internal/routes"
)

type staticSnapshot authctx.Snapshot

func (s staticSnapshot) Snapshot() authctx.Snapshot { return authctx.Snapshot(s) }

func sidebarPaths(sidebar []Section) []string {
	out := make([]string, 0, len(sidebar))
	for _, section := range sidebar {
		out = append(out, section.Path)
	}
	return out
}

func TestPageHandlerSidebar(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		principal *model.Principal
		want      []string
	}{
		{
			name:      "admin sees granted sections",
			principal: &model.Principal{ID: "u1", Role: model.RoleAdmin, Permissions: model.NewPermissionSet(model.PermProducts, model.PermOrders)},
			want:      []string{"/dashboard", "/products", "/orders"},
		},
		{
			name:      "admin without grants sees the landing page only",
			principal: &model.Principal{ID: "u2", Role: model.RoleAdmin, Permissions: model.NewPermissionSet()},
			want:      []string{"/dashboard"},
		},
		{
			name:      "super admin sees everything",
			principal: &model.Principal{ID: "u3", Role: model.RoleSuperAdmin, Permissions: model.NewPermissionSet()},
			want:      sidebarPaths(Sections()),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			snap := staticSnapshot{State: authctx.StateAuthenticated, Principal: tc.principal}
			h := NewPageHandler(snap)

			rec := httptest.NewRecorder()
			h.Section(Sections()[0]).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, routes.Landing, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var doc pageDocument
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &doc))
			require.Equal(t, "Dashboard", doc.Title)
			require.Equal(t, tc.want, sidebarPaths(doc.Sidebar))
			require.Equal(t, tc.principal.ID, doc.Principal.ID)
		})
	}
}

func TestPageHandlerBehindGate(t *testing.T) {
	t.Parallel()

	principal := &model.Principal{ID: "u1", Role: model.RoleAdmin, Permissions: model.NewPermissionSet(model.PermProducts)}
	source := staticSnapshot{State: authctx.StateAuthenticated, Principal: principal}
	pages := NewPageHandler(source)
	g := gate.New(source)

	orders := Sections()[3]
	require.Equal(t, model.PermOrders, orders.Permission)

	rec := httptest.NewRecorder()
	g.Require(orders.Permission)(pages.Section(orders)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, orders.Path, nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, routes.Landing, rec.Header().Get("Location"))

	products := Sections()[2]
	rec = httptest.NewRecorder()
	g.Require(products.Permission)(pages.Section(products)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, products.Path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPageHandlerLoginShowsNotice(t *testing.T) {
	t.Parallel()

	notice := &authctx.Notice{Kind: authctx.NoticeNotAuthorized, Message: "not authorized"}
	h := NewPageHandler(staticSnapshot{State: authctx.StateAnonymous, Notice: notice})

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, routes.Login, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc pageDocument
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &doc))
	require.Equal(t, routes.Login, doc.Path)
	require.Empty(t, doc.Sidebar)
	require.NotNil(t, doc.Notice)
	require.Equal(t, authctx.NoticeNotAuthorized, doc.Notice.Kind)
}
