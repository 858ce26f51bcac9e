package model

import "time"

// IdentityRecord is a password identity held by the authority.
type IdentityRecord struct {
	UID                 string     `json:"uid"`
	Email               string     `json:"email"`
	DisplayName         string     `json:"display_name"`
	PasswordHash        string     `json:"-"`
	Disabled            bool       `json:"disabled"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// AdminRecord is the authoritative admin grant for an identity.
type AdminRecord struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	AdminAccess []string  `json:"admin_access"`
	Disabled    bool      `json:"disabled"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IDTokenClaims are the claims carried by an ID token.
type IDTokenClaims struct {
	UserID      string `json:"sub"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	Admin       bool   `json:"admin"`
}

// SignInResult mirrors the identity-toolkit password sign-in response.
type SignInResult struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	Registered   bool   `json:"registered"`
}

// RefreshResult mirrors the secure-token refresh response.
type RefreshResult struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	TokenType    string `json:"token_type"`
	UserID       string `json:"user_id"`
}

// VerifiedUser is the user block of the verify endpoint response.
type VerifiedUser struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	DisplayName  string   `json:"displayName,omitempty"`
	Role         string   `json:"role"`
	AdminAccess  []string `json:"adminAccess"`
	IsSuperAdmin bool     `json:"isSuperAdmin"`
}

type VerifyData struct {
	User VerifiedUser `json:"user"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
