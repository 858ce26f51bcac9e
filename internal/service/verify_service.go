package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"admin-console/internal/model"
)

type AdminStore interface {
	FindByUserID(ctx context.Context, userID string) (model.AdminRecord, error)
	Upsert(ctx context.Context, rec model.AdminRecord) error
	Revoke(ctx context.Context, userID string) error
	List(ctx context.Context) ([]model.AdminRecord, error)
}

// VerifyService resolves a validated ID token to its admin grant. The
// admin table is authoritative; the token's admin claim is ignored.
type VerifyService struct {
	admins     AdminStore
	identities IdentityStore
	audit      *AuditService
}

func NewVerifyService(admins AdminStore, identities IdentityStore) *VerifyService {
	return &VerifyService{admins: admins, identities: identities}
}

// UseAudit records verify refusals and grant changes to audit.
func (s *VerifyService) UseAudit(audit *AuditService) {
	s.audit = audit
}

func (s *VerifyService) Verify(ctx context.Context, claims *model.IDTokenClaims) (user *model.VerifiedUser, err error) {
	defer func() {
		if err != nil && claims != nil {
			s.audit.Record(ctx, model.AuditVerify, claims.UserID, map[string]bool{"claimed_admin": claims.Admin}, err)
		}
	}()

	if claims == nil || claims.UserID == "" {
		return nil, model.ErrUnauthorized
	}

	rec, err := s.admins.FindByUserID(ctx, claims.UserID)
	if errors.Is(err, model.ErrAdminNotFound) {
		slog.Info("verify refused: no admin grant", "uid", claims.UserID, "claimed_admin", claims.Admin)
		return nil, model.ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	if rec.Disabled {
		slog.Info("verify refused: admin grant disabled", "uid", claims.UserID)
		return nil, model.ErrForbidden
	}

	role, err := model.ParseRole(rec.Role)
	if err != nil {
		slog.Error("admin record carries an unknown role", "uid", rec.UserID, "role", rec.Role)
		return nil, model.ErrForbidden
	}

	email := rec.Email
	if email == "" {
		email = claims.Email
	}

	access := rec.AdminAccess
	if access == nil {
		access = []string{}
	}

	return &model.VerifiedUser{
		ID:           rec.UserID,
		Email:        email,
		DisplayName:  claims.DisplayName,
		Role:         string(role),
		AdminAccess:  access,
		IsSuperAdmin: role == model.RoleSuperAdmin,
	}, nil
}

// Grant gives the identity behind email an admin role. Access tags are
// validated against the known permission set.
func (s *VerifyService) Grant(ctx context.Context, email string, role string, access []string) (granted model.AdminRecord, err error) {
	defer func() {
		s.audit.Record(ctx, model.AuditAdminGrant, strings.ToLower(strings.TrimSpace(email)),
			map[string]any{"role": role, "access": access}, err)
	}()

	parsedRole, err := model.ParseRole(role)
	if err != nil {
		return model.AdminRecord{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	tags := make([]string, 0, len(access))
	for _, raw := range access {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		perm, err := model.ParsePermission(raw)
		if err != nil {
			return model.AdminRecord{}, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
		}
		tags = append(tags, string(perm))
	}

	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		return model.AdminRecord{}, err
	}

	rec := model.AdminRecord{
		UserID:      identity.UID,
		Email:       identity.Email,
		Role:        string(parsedRole),
		AdminAccess: tags,
	}
	if err := s.admins.Upsert(ctx, rec); err != nil {
		return model.AdminRecord{}, err
	}

	slog.Info("admin granted", "uid", rec.UserID, "role", rec.Role, "access", rec.AdminAccess)
	return rec, nil
}

func (s *VerifyService) Revoke(ctx context.Context, email string) (err error) {
	defer func() {
		s.audit.Record(ctx, model.AuditAdminRevoke, strings.ToLower(strings.TrimSpace(email)), nil, err)
	}()

	identity, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.admins.Revoke(ctx, identity.UID)
}

func (s *VerifyService) List(ctx context.Context) ([]model.AdminRecord, error) {
	return s.admins.List(ctx)
}
