package routes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := map[string]Class{
		"/login":              Public,
		"/login/":             Public,
		"/":                   Protected,
		"/orders":             Protected,
		"/dashboard":          Protected,
		"/products/42/edit":   Protected,
		"/api/orders":         API,
		"/api":                API,
		"/_next/static/a.js":  Static,
		"/static/logo":        Static,
		"/favicon.ico":        Static,
		"/images/banner.png":  Static,
		"/ws":                 Static,
		"/apis":               Protected,
		"/protected/orders":   Protected,
		"/logo.svg":           Static,
		"/site.webmanifest":   Static,
		"/customers/jane.doe": Protected,
		"/customers/a.png":    Protected,
		"/protected/x.png":    Protected,
		"/report.pdf":         Protected,
		"/v1.2":               Protected,
	}

	for p, want := range cases {
		require.Equal(t, want, Classify(p), p)
	}
}

func TestStripLegacyPrefix(t *testing.T) {
	t.Parallel()

	got, ok := StripLegacyPrefix("/protected/orders/7")
	require.True(t, ok)
	require.Equal(t, "/orders/7", got)

	got, ok = StripLegacyPrefix("/protected")
	require.True(t, ok)
	require.Equal(t, "/", got)

	got, ok = StripLegacyPrefix("/protectedness")
	require.False(t, ok)
	require.Equal(t, "/protectedness", got)
}
