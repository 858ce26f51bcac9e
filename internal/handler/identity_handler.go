package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"admin-console/internal/model"
)

type tokenAuthority interface {
	SignIn(ctx context.Context, email string, password string) (*model.SignInResult, error)
	Refresh(ctx context.Context, grantType string, refreshToken string) (*model.RefreshResult, error)
}

// IdentityHandler serves the identity-toolkit compatible endpoints. They
// answer in the toolkit's error shape rather than the API envelope.
type IdentityHandler struct {
	service tokenAuthority
}

func NewIdentityHandler(service tokenAuthority) *IdentityHandler {
	return &IdentityHandler{service: service}
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

func (h *IdentityHandler) SignInWithPassword(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload signInRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeToolkitError(w, http.StatusBadRequest, "INVALID_JSON")
		return
	}

	switch {
	case strings.TrimSpace(payload.Email) == "":
		writeToolkitError(w, http.StatusBadRequest, "INVALID_EMAIL")
		return
	case payload.Password == "":
		writeToolkitError(w, http.StatusBadRequest, "MISSING_PASSWORD")
		return
	}

	result, err := h.service.SignIn(withActor(r).Context(), payload.Email, payload.Password)
	if err != nil {
		writeToolkitFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Token exchanges a refresh token. Form and JSON bodies are accepted.
func (h *IdentityHandler) Token(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload refreshRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeToolkitError(w, http.StatusBadRequest, "INVALID_JSON")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeToolkitError(w, http.StatusBadRequest, "INVALID_ARGUMENT")
			return
		}
		payload.GrantType = r.PostForm.Get("grant_type")
		payload.RefreshToken = r.PostForm.Get("refresh_token")
	}

	if payload.GrantType != "refresh_token" {
		writeToolkitError(w, http.StatusBadRequest, "INVALID_GRANT_TYPE")
		return
	}
	if strings.TrimSpace(payload.RefreshToken) == "" {
		writeToolkitError(w, http.StatusBadRequest, "MISSING_REFRESH_TOKEN")
		return
	}

	result, err := h.service.Refresh(withActor(r).Context(), payload.GrantType, payload.RefreshToken)
	if err != nil {
		writeToolkitFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeToolkitFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		writeToolkitError(w, http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS")
	case errors.Is(err, model.ErrIdentityDisabled):
		writeToolkitError(w, http.StatusBadRequest, "USER_DISABLED")
	case errors.Is(err, model.ErrAccountLocked):
		writeToolkitError(w, http.StatusBadRequest, "TOO_MANY_ATTEMPTS_TRY_LATER")
	case errors.Is(err, model.ErrTokenExpired):
		writeToolkitError(w, http.StatusBadRequest, "TOKEN_EXPIRED")
	case errors.Is(err, model.ErrTokenNotFound):
		writeToolkitError(w, http.StatusBadRequest, "INVALID_REFRESH_TOKEN")
	case errors.Is(err, model.ErrInvalidInput):
		writeToolkitError(w, http.StatusBadRequest, "INVALID_ARGUMENT")
	default:
		slog.Error("identity endpoint failed", "error", err)
		writeToolkitError(w, http.StatusInternalServerError, "INTERNAL_ERROR")
	}
}

type toolkitError struct {
	Error toolkitErrorBody `json:"error"`
}

type toolkitErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeToolkitError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, toolkitError{Error: toolkitErrorBody{Code: status, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
