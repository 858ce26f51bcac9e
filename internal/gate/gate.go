// Package gate decides whether the signed-in administrator may see a page.
package gate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"admin-console/internal/authctx"
	"admin-console/internal/model"
	"admin-console/internal/routes"
)

// HasPermission is true for a super admin and for any principal holding
// perm. A nil principal holds nothing.
func HasPermission(p *model.Principal, perm model.Permission) bool {
	if p == nil {
		return false
	}
	if p.Role == model.RoleSuperAdmin {
		return true
	}

	return p.Permissions.Has(perm)
}

// HasRole reports whether p has at least role.
func HasRole(p *model.Principal, role model.Role) bool {
	if p == nil {
		return false
	}
	if p.Role == model.RoleSuperAdmin {
		return true
	}

	return p.Role == role
}

type Kind int

const (
	Loading Kind = iota
	Allow
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "loading"
	}
}

type Decision struct {
	Kind   Kind
	Target string
}

// Evaluate decides what a page requiring perm shows for snap. An empty
// perm only requires a session.
func Evaluate(snap authctx.Snapshot, perm model.Permission) Decision {
	return evaluate(snap, func(p *model.Principal) bool {
		return perm == "" || HasPermission(p, perm)
	})
}

func evaluate(snap authctx.Snapshot, allowed func(*model.Principal) bool) Decision {
	if snap.State == authctx.StateLoading {
		return Decision{Kind: Loading}
	}
	if snap.Principal == nil {
		return Decision{Kind: Redirect, Target: routes.Login}
	}
	if !allowed(snap.Principal) {
		return Decision{Kind: Redirect, Target: routes.Landing}
	}

	return Decision{Kind: Allow}
}

// Source yields the current session on each call.
type Source interface {
	Snapshot() authctx.Snapshot
}

type Gate struct {
	source   Source
	fallback http.Handler
}

func New(source Source) *Gate {
	return &Gate{source: source}
}

// WithFallback renders h for denied requests instead of redirecting.
func (g *Gate) WithFallback(h http.Handler) *Gate {
	return &Gate{source: g.source, fallback: h}
}

func (g *Gate) Require(perm model.Permission) func(http.Handler) http.Handler {
	return g.guard(string(perm), func(p *model.Principal) bool {
		return perm == "" || HasPermission(p, perm)
	})
}

func (g *Gate) RequireRole(role model.Role) func(http.Handler) http.Handler {
	return g.guard(string(role), func(p *model.Principal) bool {
		return HasRole(p, role)
	})
}

func (g *Gate) guard(required string, allowed func(*model.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := g.source.Snapshot()
			decision := evaluate(snap, allowed)

			switch decision.Kind {
			case Allow:
				ctx := context.WithValue(r.Context(), principalContextKey, snap.Principal)
				next.ServeHTTP(w, r.WithContext(ctx))
			case Loading:
				writeLoading(w)
			case Redirect:
				slog.Debug("gate denied page", "path", r.URL.Path, "required", required, "target", decision.Target)
				if g.fallback != nil && decision.Target == routes.Landing {
					g.fallback.ServeHTTP(w, r)
					return
				}
				http.Redirect(w, r, decision.Target, http.StatusSeeOther)
			}
		})
	}
}

type contextKey string

const principalContextKey contextKey = "principal"

// PrincipalFromContext returns the principal admitted by the gate.
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	return p, ok && p != nil
}

func writeLoading(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusAccepted)

	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    map[string]string{"state": string(authctx.StateLoading)},
	})
}
