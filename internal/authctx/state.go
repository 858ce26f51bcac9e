package authctx

import (
	"time"

	"admin-console/internal/model"
	"admin-console/internal/routes"
)

type State string

const (
	StateLoading       State = "LOADING"
	StateAnonymous     State = "ANONYMOUS"
	StateAuthenticated State = "AUTHENTICATED"
	// StateRejected is transient: it is published when the backend refuses
	// the identity and immediately settles to StateAnonymous.
	StateRejected State = "REJECTED"
)

type NoticeKind string

const (
	NoticeSessionExpired     NoticeKind = "session_expired"
	NoticeNotAuthorized      NoticeKind = "not_authorized"
	NoticeServiceUnavailable NoticeKind = "service_unavailable"
)

var noticeMessages = map[NoticeKind]string{
	NoticeSessionExpired:     "Your session has expired. Please sign in again.",
	NoticeNotAuthorized:      "This account is not authorized to use the admin console.",
	NoticeServiceUnavailable: "The authentication service is unreachable. Retrying in the background.",
}

// Notice is a user-visible message raised by a transition.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}

func newNotice(kind NoticeKind) *Notice {
	return &Notice{Kind: kind, Message: noticeMessages[kind], At: time.Now().UTC()}
}

// Snapshot is a consistent read of the context state. Version increases
// whenever the Principal reference changes.
type Snapshot struct {
	State     State
	Principal *model.Principal
	Notice    *Notice
	Version   uint64
}

// View is the wire form of a Snapshot.
type View struct {
	State     State                `json:"state"`
	Principal *model.PrincipalView `json:"principal"`
	Notice    *Notice              `json:"notice,omitempty"`
	Version   uint64               `json:"version"`
}

func (s Snapshot) View() View {
	return View{
		State:     s.State,
		Principal: model.NewPrincipalView(s.Principal),
		Notice:    s.Notice,
		Version:   s.Version,
	}
}

// Decide returns where the console should navigate once it settles in
// state while showing current, or "" to stay put.
func Decide(state State, current string) string {
	switch state {
	case StateAuthenticated:
		if routes.IsPublic(current) {
			return routes.Landing
		}
	case StateAnonymous, StateRejected:
		if !routes.IsPublic(current) {
			return routes.Login
		}
	}

	return ""
}
