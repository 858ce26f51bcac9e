package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"admin-console/internal/model"
)

func TestIdentityServiceSignIn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("issues an id token carrying the admin claim", func(t *testing.T) {
		f := newFixture()
		rec, err := f.idents.CreateIdentity(ctx, "admin@x.com", "correctpass", "Ada")
		require.NoError(t, err)
		require.NoError(t, f.admins.Upsert(ctx, model.AdminRecord{UserID: rec.UID, Role: "SUPER_ADMIN"}))

		result, err := f.idents.SignIn(ctx, "ADMIN@x.com", "correctpass")
		require.NoError(t, err)
		require.Equal(t, rec.UID, result.LocalID)
		require.Equal(t, "3600", result.ExpiresIn)
		require.True(t, result.Registered)
		require.NotEmpty(t, result.RefreshToken)
		require.Equal(t, 1, f.tokens.count())

		claims, err := f.idents.ValidateIDToken(result.IDToken)
		require.NoError(t, err)
		require.Equal(t, rec.UID, claims.UserID)
		require.Equal(t, "Ada", claims.DisplayName)
		require.True(t, claims.Admin)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		f := newFixture()
		_, err := f.idents.CreateIdentity(ctx, "admin@x.com", "correctpass", "")
		require.NoError(t, err)

		_, err = f.idents.SignIn(ctx, "admin@x.com", "wrongpass")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)

		_, err = f.idents.SignIn(ctx, "nobody@x.com", "wrongpass")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("repeated failures lock the identity", func(t *testing.T) {
		f := newFixture()
		_, err := f.idents.CreateIdentity(ctx, "admin@x.com", "correctpass", "")
		require.NoError(t, err)

		for i := 0; i < maxFailedSignIns; i++ {
			_, err = f.idents.SignIn(ctx, "admin@x.com", "wrongpass")
			require.ErrorIs(t, err, model.ErrInvalidCredentials)
		}

		_, err = f.idents.SignIn(ctx, "admin@x.com", "correctpass")
		require.ErrorIs(t, err, model.ErrAccountLocked)

		f.idents.now = func() time.Time { return time.Now().Add(lockoutDuration + time.Minute) }
		_, err = f.idents.SignIn(ctx, "admin@x.com", "correctpass")
		require.NoError(t, err)
	})

	t.Run("lapsed lock starts a fresh count", func(t *testing.T) {
		f := newFixture()
		rec, err := f.idents.CreateIdentity(ctx, "admin@x.com", "correctpass", "")
		require.NoError(t, err)

		for i := 0; i < maxFailedSignIns; i++ {
			_, err = f.idents.SignIn(ctx, "admin@x.com", "wrongpass")
			require.ErrorIs(t, err, model.ErrInvalidCredentials)
		}
		locked, err := f.identities.FindByID(ctx, rec.UID)
		require.NoError(t, err)
		require.NotNil(t, locked.LockedUntil)
		require.Zero(t, locked.FailedLoginAttempts)

		f.idents.now = func() time.Time { return time.Now().Add(lockoutDuration + time.Minute) }
		_, err = f.idents.SignIn(ctx, "admin@x.com", "wrongpass")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
		_, err = f.idents.SignIn(ctx, "admin@x.com", "correctpass")
		require.NoError(t, err)
	})

	t.Run("disabled identity is refused", func(t *testing.T) {
		f := newFixture()
		rec, err := f.idents.CreateIdentity(ctx, "admin@x.com", "correctpass", "")
		require.NoError(t, err)
		signedIn, err := f.idents.SignIn(ctx, "admin@x.com", "correctpass")
		require.NoError(t, err)

		require.NoError(t, f.idents.SetDisabled(ctx, "admin@x.com", true))
		require.Zero(t, f.tokens.count())

		_, err = f.idents.SignIn(ctx, "admin@x.com", "correctpass")
		require.ErrorIs(t, err, model.ErrIdentityDisabled)
		_, err = f.idents.Refresh(ctx, "refresh_token", signedIn.RefreshToken)
		require.ErrorIs(t, err, model.ErrTokenNotFound)

		require.NoError(t, f.identities.update(rec.UID, func(r *model.IdentityRecord) { r.Disabled = false }))
		_, err = f.idents.SignIn(ctx, "admin@x.com", "correctpass")
		require.NoError(t, err)
	})
}

func TestIdentityServiceRefresh(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	rec, err := f.idents.CreateIdentity(ctx, "admin@x.com", "correctpass", "")
	require.NoError(t, err)

	signedIn, err := f.idents.SignIn(ctx, "admin@x.com", "correctpass")
	require.NoError(t, err)

	first, err := f.idents.ValidateIDToken(signedIn.IDToken)
	require.NoError(t, err)
	require.False(t, first.Admin)

	// A grant made after sign-in shows up in the next minted token.
	require.NoError(t, f.admins.Upsert(ctx, model.AdminRecord{UserID: rec.UID, Role: "ADMIN"}))

	refreshed, err := f.idents.Refresh(ctx, "refresh_token", signedIn.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, rec.UID, refreshed.UserID)
	require.NotEqual(t, signedIn.RefreshToken, refreshed.RefreshToken)

	claims, err := f.idents.ValidateIDToken(refreshed.IDToken)
	require.NoError(t, err)
	require.True(t, claims.Admin)

	_, err = f.idents.Refresh(ctx, "refresh_token", signedIn.RefreshToken)
	require.ErrorIs(t, err, model.ErrTokenNotFound)

	_, err = f.idents.Refresh(ctx, "password", refreshed.RefreshToken)
	require.ErrorIs(t, err, model.ErrInvalidInput)

	require.NoError(t, f.idents.ResetPassword(ctx, "admin@x.com", "another-pass"))
	_, err = f.idents.Refresh(ctx, "refresh_token", refreshed.RefreshToken)
	require.ErrorIs(t, err, model.ErrTokenNotFound)
}

func TestValidateIDToken(t *testing.T) {
	t.Parallel()

	f := newFixture()

	sign := func(secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
		token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}
	valid := jwt.MapClaims{"iss": tokenIssuer, "sub": "u1", "exp": time.Now().Add(time.Hour).Unix()}

	_, err := f.idents.ValidateIDToken(sign("test-secret", jwt.SigningMethodHS256, valid))
	require.NoError(t, err)

	_, err = f.idents.ValidateIDToken(sign("other-secret", jwt.SigningMethodHS256, valid))
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = f.idents.ValidateIDToken(sign("test-secret", jwt.SigningMethodHS512, valid))
	require.ErrorIs(t, err, model.ErrUnauthorized)

	expired := jwt.MapClaims{"iss": tokenIssuer, "sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}
	_, err = f.idents.ValidateIDToken(sign("test-secret", jwt.SigningMethodHS256, expired))
	require.ErrorIs(t, err, model.ErrTokenExpired)

	noSubject := jwt.MapClaims{"iss": tokenIssuer, "exp": time.Now().Add(time.Hour).Unix()}
	_, err = f.idents.ValidateIDToken(sign("test-secret", jwt.SigningMethodHS256, noSubject))
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestCreateIdentityValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()

	_, err := f.idents.CreateIdentity(ctx, "not-an-email", "correctpass", "")
	require.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.idents.CreateIdentity(ctx, "admin@x.com", "short", "")
	require.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.idents.CreateIdentity(ctx, "admin@x.com", "correctpass", "")
	require.NoError(t, err)
	_, err = f.idents.CreateIdentity(ctx, "Admin@x.com", "correctpass", "")
	require.ErrorIs(t, err, model.ErrIdentityExists)
}
