package domain

import (
	"strings"
	"time"

	"github.com/syncstream/syncstream/internal/infrastructure/validate"
)

type Presence string

const (
	PresenceConnecting Presence = "connecting"
	PresenceOnline     Presence = "online"
	PresenceOffline    Presence = "offline"
)

// Identity is what the identity provider vouches for. The core never
// validates credentials itself; it only requires a stable member id.
type Identity struct {
	MemberID    string `json:"memberId"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

type Member struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarRef   string    `json:"avatarRef,omitempty"`
	Presence    Presence  `json:"presence"`
	JoinedAt    time.Time `json:"joinedAt"`
}

func NewMember(identity Identity) (*Member, error) {
	if identity.MemberID == "" {
		return nil, ErrUnauthenticated
	}

	validateDisplayName := validate.Compose(
		validate.Required(),
		validate.MinLength(2),
		validate.MaxLength(32),
		validate.NoSpaces(),
		// Allow letters, numbers, underscore, hyphen
		validate.Matches(`^[a-zA-Z0-9][a-zA-Z0-9_-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`,
			"display name can only contain letters, numbers, underscores, and hyphens (cannot start/end with _ or -)"),
	)

	if err := validateDisplayName(identity.DisplayName); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(identity.DisplayName)

	return &Member{
		ID:          identity.MemberID,
		DisplayName: name,
		AvatarRef:   identity.AvatarRef,
		Presence:    PresenceConnecting,
		JoinedAt:    time.Now(),
	}, nil
}
