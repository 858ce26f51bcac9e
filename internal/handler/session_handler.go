package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"admin-console/internal/authctx"
	"admin-console/internal/model"
	"admin-console/internal/session"
	"admin-console/pkg/apierror"
)

type sessionAuthority interface {
	Snapshot() authctx.Snapshot
	Login(ctx context.Context, email string, password string) (*model.Principal, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// SessionHandler exposes the console session to the dashboard. The
// session cookie is only written for the caller that established or holds
// the session; logout, refresh and the proxy sit behind the session binding.
type SessionHandler struct {
	auth   sessionAuthority
	store  session.Store
	cookie session.CookiePolicy
}

func NewSessionHandler(auth sessionAuthority, store session.Store, cookie session.CookiePolicy) *SessionHandler {
	return &SessionHandler{auth: auth, store: store, cookie: cookie}
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Email == "" || payload.Password == "" {
		writeError(w, apierror.BadRequest("email and password are required", "email,password"))
		return
	}

	if _, err := h.auth.Login(r.Context(), payload.Email, payload.Password); err != nil {
		http.SetCookie(w, h.cookie.Expired())
		writeError(w, err)
		return
	}

	h.cookie.Mirror(w, h.store)
	writeSuccess(w, http.StatusOK, h.auth.Snapshot().View())
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, h.cookie.Expired())
	writeSuccess(w, http.StatusOK, h.auth.Snapshot().View())
}

// Current reports the session. Callers not holding the session cookie only
// learn that they are signed out and see the pending notice.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	view := h.auth.Snapshot().View()
	if !h.cookie.Bound(r, h.store) {
		view.Principal = nil
		if view.State == authctx.StateAuthenticated {
			view.State = authctx.StateAnonymous
		}
	}

	writeSuccess(w, http.StatusOK, view)
}

// Refresh re-runs the verify cycle now. A backend outage keeps the
// session and is reported in the snapshot's notice.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.auth.Refresh(r.Context())
	switch {
	case err == nil:
		h.cookie.Mirror(w, h.store)
	case errors.Is(err, model.ErrServiceUnavailable):
	default:
		http.SetCookie(w, h.cookie.Expired())
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.auth.Snapshot().View())
}
