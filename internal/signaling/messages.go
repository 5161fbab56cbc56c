package signaling

import "github.com/l3kza08/ichat-api/internal/identity"

// Message types accepted from clients.
const (
	msgTypeAnnounce           = "announce"
	msgTypeRequestUserProfile = "request_user_profile"
	msgTypeSearchUsers        = "search_users"
	msgTypeSignal             = "signal"
	msgTypeOffer              = "offer"
	msgTypeAnswer             = "answer"
	msgTypeICE                = "ice"
	msgTypeLeave              = "leave"
)

// Message types sent to clients.
const (
	msgTypeAnnounceResponse    = "announce_response"
	msgTypeUserProfileResponse = "user_profile_response"
	msgTypeSearchUsersResponse = "search_users_response"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// envelope is the minimal shape decoded from every inbound frame. Relay
// messages are re-decoded as raw maps so their payload survives verbatim.
type envelope struct {
	Type      string    `json:"type"`
	RequestID string    `json:"requestId,omitempty"`
	UID       string    `json:"uid,omitempty"`
	User      *wireUser `json:"user,omitempty"`

	// Profile lookup selectors.
	Email              string `json:"email,omitempty"`
	PasswordHash       string `json:"passwordHash,omitempty"`
	RecoveryPhraseHash string `json:"recoveryPhraseHash,omitempty"`

	// Search.
	Query string `json:"query,omitempty"`
}

type wireUser struct {
	UID                string `json:"uid"`
	Name               string `json:"name,omitempty"`
	Email              string `json:"email,omitempty"`
	Username           string `json:"username,omitempty"`
	PhotoReference     string `json:"photoReference,omitempty"`
	StatusType         string `json:"statusType,omitempty"`
	PasswordHash       string `json:"passwordHash,omitempty"`
	RecoveryPhraseHash string `json:"recoveryPhraseHash,omitempty"`
}

func (u *wireUser) toRecord() identity.Record {
	return identity.Record{
		UID:                u.UID,
		Name:               u.Name,
		Email:              u.Email,
		Username:           u.Username,
		PhotoReference:     u.PhotoReference,
		StatusType:         identity.Status(u.StatusType),
		PasswordHash:       u.PasswordHash,
		RecoveryPhraseHash: u.RecoveryPhraseHash,
	}
}

type announceResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

type profileResponse struct {
	Type      string                  `json:"type"`
	RequestID string                  `json:"requestId"`
	Status    string                  `json:"status"`
	User      *identity.PublicProfile `json:"user,omitempty"`
}

type searchResponse struct {
	Type      string                   `json:"type"`
	RequestID string                   `json:"requestId"`
	Users     []identity.PublicProfile `json:"users"`
}

func isRelayType(t string) bool {
	switch t {
	case msgTypeSignal, msgTypeOffer, msgTypeAnswer, msgTypeICE:
		return true
	default:
		return false
	}
}
