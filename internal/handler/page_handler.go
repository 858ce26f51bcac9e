package handler

import (
	"net/http"

	"admin-console/internal/authctx"
	"admin-console/internal/gate"
	"admin-console/internal/model"
	"admin-console/internal/routes"
)

// Section is one dashboard page. An empty Permission only requires a
// session.
type Section struct {
	Path       string           `json:"path"`
	Title      string           `json:"title"`
	Permission model.Permission `json:"permission,omitempty"`
}

var sections = []Section{
	{Path: routes.Landing, Title: "Dashboard"},
	{Path: "/analytics", Title: "Analytics", Permission: model.PermDashboard},
	{Path: "/products", Title: "Products", Permission: model.PermProducts},
	{Path: "/orders", Title: "Orders", Permission: model.PermOrders},
	{Path: "/customers", Title: "Customers", Permission: model.PermCustomers},
	{Path: "/admins", Title: "Administrators", Permission: model.PermAdmin},
	{Path: "/rewards", Title: "Rewards", Permission: model.PermRewards},
	{Path: "/coupons", Title: "Coupons", Permission: model.PermCoupons},
	{Path: "/settings", Title: "Settings", Permission: model.PermSettings},
}

// Sections returns the dashboard pages in sidebar order.
func Sections() []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	return out
}

type pageDocument struct {
	Title     string               `json:"title"`
	Path      string               `json:"path"`
	Principal *model.PrincipalView `json:"principal,omitempty"`
	Sidebar   []Section            `json:"sidebar,omitempty"`
	Notice    *authctx.Notice      `json:"notice,omitempty"`
}

type snapshotSource interface {
	Snapshot() authctx.Snapshot
}

// PageHandler renders the placeholder dashboard shell. Pages sit behind
// the permission gate; the document only lists what the principal holds.
type PageHandler struct {
	auth snapshotSource
}

func NewPageHandler(auth snapshotSource) *PageHandler {
	return &PageHandler{auth: auth}
}

// Section returns the handler for one dashboard page.
func (h *PageHandler) Section(section Section) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := h.auth.Snapshot()
		principal, ok := gate.PrincipalFromContext(r.Context())
		if !ok {
			principal = snap.Principal
		}

		writeSuccess(w, http.StatusOK, pageDocument{
			Title:     section.Title,
			Path:      section.Path,
			Principal: model.NewPrincipalView(principal),
			Sidebar:   sidebarFor(principal),
			Notice:    snap.Notice,
		})
	}
}

// Login renders the sign-in page with the latest notice, such as a
// session expiry or a refused account.
func (h *PageHandler) Login(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, pageDocument{
		Title:  "Sign in",
		Path:   routes.Login,
		Notice: h.auth.Snapshot().Notice,
	})
}

func sidebarFor(p *model.Principal) []Section {
	out := make([]Section, 0, len(sections))
	for _, section := range sections {
		if section.Permission == "" || gate.HasPermission(p, section.Permission) {
			out = append(out, section)
		}
	}
	return out
}
