package model

import "time"

const (
	AuditSignIn          = "sign_in"
	AuditTokenRefresh    = "token_refresh"
	AuditVerify          = "verify"
	AuditIdentityCreate  = "identity_create"
	AuditIdentityDisable = "identity_disable"
	AuditIdentityEnable  = "identity_enable"
	AuditPasswordReset   = "password_reset"
	AuditAdminGrant      = "admin_grant"
	AuditAdminRevoke     = "admin_revoke"

	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

// AuditActor is whoever caused an audited action: an HTTP caller or the CLI.
type AuditActor struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	IP     string `json:"ip,omitempty"`
}

type AuditEntry struct {
	Action     string     `json:"action"`
	OccurredAt time.Time  `json:"occurred_at"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Subject    string     `json:"subject"`
	Detail     any        `json:"detail,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type AuditQuery struct {
	Action  string
	ActorID string
	Subject string
	Status  string
	From    string
	To      string
	Page    int
	Limit   int
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
	Meta  Meta         `json:"meta"`
}
