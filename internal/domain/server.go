package domain

import (
	"time"

	"github.com/google/uuid"
)

type Server struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	ImageURL   *string   `json:"image_url,omitempty"`
	InviteCode string    `json:"invite_code"`
	OwnerID    uuid.UUID `json:"owner_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MemberRole is the role a user holds inside one server.
type MemberRole string

const (
	RoleAdmin     MemberRole = "ADMIN"
	RoleModerator MemberRole = "MODERATOR"
	RoleGuest     MemberRole = "GUEST"
)

func (r MemberRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleGuest:
		return true
	}
	return false
}

// CanModerate reports whether the role may delete other members' messages.
func (r MemberRole) CanModerate() bool {
	return r == RoleAdmin || r == RoleModerator
}

type Member struct {
	ID        uuid.UUID  `json:"id"`
	ServerID  uuid.UUID  `json:"server_id"`
	UserID    uuid.UUID  `json:"user_id"`
	Role      MemberRole `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	// LeftAt is set when the member leaves or is kicked. The row is kept so
	// messages and conversations keep their author.
	LeftAt *time.Time `json:"left_at,omitempty"`
	// Joined fields
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

func (m *Member) Active() bool {
	return m.LeftAt == nil
}

// ServerDetails is a server together with its channels and members.
type ServerDetails struct {
	Server
	Channels []Channel `json:"channels"`
	Members  []Member  `json:"members"`
}
