package authctx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"admin-console/internal/model"
)

func TestDecide(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state   State
		current string
		want    string
	}{
		{StateAuthenticated, "/login", "/dashboard"},
		{StateAuthenticated, "/login/", "/dashboard"},
		{StateAuthenticated, "/orders", ""},
		{StateAnonymous, "/orders", "/login"},
		{StateAnonymous, "/login", ""},
		{StateRejected, "/dashboard", "/login"},
		{StateLoading, "/orders", ""},
		{StateLoading, "/login", ""},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Decide(tc.state, tc.current), "%s at %s", tc.state, tc.current)
	}
}

func TestSnapshotView(t *testing.T) {
	t.Parallel()

	require.Nil(t, Snapshot{State: StateAnonymous}.View().Principal)

	view := Snapshot{
		State:     StateAuthenticated,
		Principal: admin("u1", model.PermOrders, model.PermProducts),
		Version:   3,
	}.View()

	require.Equal(t, "u1", view.Principal.ID)
	require.Equal(t, []model.Permission{model.PermProducts, model.PermOrders}, view.Principal.Permissions)
	require.Equal(t, uint64(3), view.Version)
}
