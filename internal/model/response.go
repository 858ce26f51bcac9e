package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PrincipalView is the wire form of a Principal.
type PrincipalView struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name,omitempty"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

func NewPrincipalView(p *Principal) *PrincipalView {
	if p == nil {
		return nil
	}

	return &PrincipalView{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		Permissions: p.PermissionList(),
	}
}
