package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"admin-console/internal/model"
)

const (
	bcryptCost       = 12
	maxFailedSignIns = 5
	lockoutDuration  = 15 * time.Minute
	tokenIssuer      = "admin-console-authd"
)

type IdentityStore interface {
	FindByID(ctx context.Context, uid string) (model.IdentityRecord, error)
	FindByEmail(ctx context.Context, email string) (model.IdentityRecord, error)
	Create(ctx context.Context, rec model.IdentityRecord) error
	UpdatePassword(ctx context.Context, uid string, passwordHash string) error
	SetDisabled(ctx context.Context, uid string, disabled bool) error
	RecordFailedSignIn(ctx context.Context, uid string) (int, error)
	// Lock also zeroes the failure count.
	Lock(ctx context.Context, uid string, until time.Time) error
	ResetFailedSignIns(ctx context.Context, uid string) error
}

type RefreshTokenStore interface {
	Store(ctx context.Context, tokenHash string, userID string, expiresAt time.Time) error
	Consume(ctx context.Context, tokenHash string) (string, error)
	RevokeAllForUser(ctx context.Context, userID string) error
	CleanExpired(ctx context.Context) (int64, error)
}

// IdentityService issues ID and refresh tokens for password identities.
type IdentityService struct {
	identities IdentityStore
	admins     AdminStore
	tokens     RefreshTokenStore
	secret     []byte
	idTTL      time.Duration
	refreshTTL time.Duration
	audit      *AuditService
	cost       int
	now        func() time.Time
}

func NewIdentityService(identities IdentityStore, admins AdminStore, tokens RefreshTokenStore, secret string, idTTL time.Duration, refreshTTL time.Duration) *IdentityService {
	return &IdentityService{
		identities: identities,
		admins:     admins,
		tokens:     tokens,
		secret:     []byte(secret),
		idTTL:      idTTL,
		refreshTTL: refreshTTL,
		cost:       bcryptCost,
		now:        time.Now,
	}
}

// UseAudit records sign-ins and identity changes to audit.
func (s *IdentityService) UseAudit(audit *AuditService) {
	s.audit = audit
}

func (s *IdentityService) SignIn(ctx context.Context, email string, password string) (result *model.SignInResult, err error) {
	defer func() {
		s.audit.Record(ctx, model.AuditSignIn, strings.ToLower(strings.TrimSpace(email)), nil, err)
	}()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, model.ErrInvalidCredentials
	}

	rec, err := s.identities.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrIdentityNotFound) {
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if rec.Disabled {
		return nil, model.ErrIdentityDisabled
	}
	if rec.LockedUntil != nil && s.now().Before(*rec.LockedUntil) {
		return nil, model.ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		s.recordFailure(ctx, rec)
		return nil, model.ErrInvalidCredentials
	}

	if rec.FailedLoginAttempts > 0 || rec.LockedUntil != nil {
		if err := s.identities.ResetFailedSignIns(ctx, rec.UID); err != nil {
			slog.Warn("reset failed sign-ins", "uid", rec.UID, "error", err)
		}
	}

	idToken, refreshToken, err := s.issue(ctx, rec)
	if err != nil {
		return nil, err
	}

	return &model.SignInResult{
		LocalID:      rec.UID,
		Email:        rec.Email,
		DisplayName:  rec.DisplayName,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresIn:    strconv.Itoa(int(s.idTTL.Seconds())),
		Registered:   true,
	}, nil
}

// Refresh rotates refreshToken: the presented token is consumed and a new
// pair is issued with claims read fresh from the admin table.
func (s *IdentityService) Refresh(ctx context.Context, grantType string, refreshToken string) (result *model.RefreshResult, err error) {
	var uid string
	defer func() {
		// Only refusals are recorded.
		if err != nil {
			s.audit.Record(ctx, model.AuditTokenRefresh, uid, nil, err)
		}
	}()

	if grantType != "refresh_token" || strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: grant_type must be refresh_token", model.ErrInvalidInput)
	}

	uid, err = s.tokens.Consume(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, err
	}

	rec, err := s.identities.FindByID(ctx, uid)
	if errors.Is(err, model.ErrIdentityNotFound) {
		return nil, model.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Disabled {
		return nil, model.ErrIdentityDisabled
	}

	idToken, rotated, err := s.issue(ctx, rec)
	if err != nil {
		return nil, err
	}

	return &model.RefreshResult{
		IDToken:      idToken,
		RefreshToken: rotated,
		ExpiresIn:    strconv.Itoa(int(s.idTTL.Seconds())),
		TokenType:    "Bearer",
		UserID:       rec.UID,
	}, nil
}

func (s *IdentityService) ValidateIDToken(tokenString string) (*model.IDTokenClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrTokenExpired
		}
		return nil, model.ErrUnauthorized
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.ErrUnauthorized
	}

	claims := &model.IDTokenClaims{}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Email, _ = claimsMap["email"].(string)
	claims.DisplayName, _ = claimsMap["name"].(string)
	claims.Admin, _ = claimsMap["admin"].(bool)

	if claims.UserID == "" {
		return nil, model.ErrUnauthorized
	}
	return claims, nil
}

// CreateIdentity registers a password identity.
func (s *IdentityService) CreateIdentity(ctx context.Context, email string, password string, displayName string) (rec model.IdentityRecord, err error) {
	email = strings.TrimSpace(email)
	defer func() {
		s.audit.Record(ctx, model.AuditIdentityCreate, strings.ToLower(email), nil, err)
	}()

	if email == "" || !strings.Contains(email, "@") {
		return model.IdentityRecord{}, fmt.Errorf("%w: a valid email is required", model.ErrInvalidInput)
	}
	if len(password) < 8 {
		return model.IdentityRecord{}, fmt.Errorf("%w: password must have at least 8 characters", model.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return model.IdentityRecord{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	rec = model.IdentityRecord{
		UID:          uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.identities.Create(ctx, rec); err != nil {
		return model.IdentityRecord{}, err
	}

	slog.Info("identity created", "uid", rec.UID, "email", rec.Email)
	return rec, nil
}

// ResetPassword sets a new password and revokes every refresh token.
func (s *IdentityService) ResetPassword(ctx context.Context, email string, password string) (err error) {
	defer func() {
		s.audit.Record(ctx, model.AuditPasswordReset, strings.ToLower(strings.TrimSpace(email)), nil, err)
	}()

	if len(password) < 8 {
		return fmt.Errorf("%w: password must have at least 8 characters", model.ErrInvalidInput)
	}

	rec, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.identities.UpdatePassword(ctx, rec.UID, string(hash)); err != nil {
		return err
	}
	return s.tokens.RevokeAllForUser(ctx, rec.UID)
}

// SetDisabled blocks or unblocks sign-in for the identity behind email.
// Disabling also revokes its refresh tokens.
func (s *IdentityService) SetDisabled(ctx context.Context, email string, disabled bool) (err error) {
	action := model.AuditIdentityEnable
	if disabled {
		action = model.AuditIdentityDisable
	}
	defer func() {
		s.audit.Record(ctx, action, strings.ToLower(strings.TrimSpace(email)), nil, err)
	}()

	rec, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.identities.SetDisabled(ctx, rec.UID, disabled); err != nil {
		return err
	}
	if !disabled {
		return nil
	}

	slog.Info("identity disabled", "uid", rec.UID)
	return s.tokens.RevokeAllForUser(ctx, rec.UID)
}

// CleanExpiredTokens drops lapsed refresh tokens.
func (s *IdentityService) CleanExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.CleanExpired(ctx)
}

func (s *IdentityService) recordFailure(ctx context.Context, rec model.IdentityRecord) {
	attempts, err := s.identities.RecordFailedSignIn(ctx, rec.UID)
	if err != nil {
		slog.Warn("record failed sign-in", "uid", rec.UID, "error", err)
		return
	}
	if attempts < maxFailedSignIns {
		return
	}

	until := s.now().Add(lockoutDuration)
	if err := s.identities.Lock(ctx, rec.UID, until); err != nil {
		slog.Warn("lock identity", "uid", rec.UID, "error", err)
		return
	}
	slog.Warn("identity locked after repeated failures", "uid", rec.UID, "attempts", attempts, "until", until)
}

// issue mints an ID token and stores a new refresh token. The admin
// claim reflects the admin table at issue time.
func (s *IdentityService) issue(ctx context.Context, rec model.IdentityRecord) (string, string, error) {
	isAdmin := false
	admin, err := s.admins.FindByUserID(ctx, rec.UID)
	switch {
	case err == nil:
		isAdmin = !admin.Disabled
	case !errors.Is(err, model.ErrAdminNotFound):
		return "", "", err
	}

	now := s.now().UTC()
	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":   tokenIssuer,
		"sub":   rec.UID,
		"email": rec.Email,
		"name":  rec.DisplayName,
		"admin": isAdmin,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.idTTL).Unix(),
	}).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign id token: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}
	refreshToken := base64.RawURLEncoding.EncodeToString(raw)

	if err := s.tokens.Store(ctx, hashToken(refreshToken), rec.UID, now.Add(s.refreshTTL)); err != nil {
		return "", "", err
	}

	return idToken, refreshToken, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	return hash
})
