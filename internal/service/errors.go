package service

import (
	"errors"

	"github.com/vedran77/chorus/internal/domain"
)

// serviceError is a sentinel that carries its own message and unwraps to
// one of the domain error kinds.
type serviceError struct {
	msg  string
	kind error
}

func (e *serviceError) Error() string { return e.msg }
func (e *serviceError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &serviceError{msg: msg, kind: kind}
}

var (
	ErrEmailTaken    = newError(domain.ErrConflict, "email already taken")
	ErrUsernameTaken = newError(domain.ErrConflict, "username already taken")
	ErrInvalidCreds  = newError(domain.ErrUnauthorized, "invalid email or password")
	ErrInvalidToken  = newError(domain.ErrUnauthorized, "invalid or expired token")

	ErrServerNotFound    = newError(domain.ErrNotFound, "server not found")
	ErrInviteNotFound    = newError(domain.ErrNotFound, "invite code not found")
	ErrMemberNotFound    = newError(domain.ErrNotFound, "member not found")
	ErrNotMember         = newError(domain.ErrForbidden, "user is not a member of this server")
	ErrNotAdmin          = newError(domain.ErrForbidden, "only server admins can perform this action")
	ErrNotModerator      = newError(domain.ErrForbidden, "only admins and moderators can perform this action")
	ErrOwnerCannotLeave  = newError(domain.ErrForbidden, "the server owner cannot leave the server")
	ErrCannotModifySelf  = newError(domain.ErrForbidden, "you cannot change your own membership")
	ErrCannotModifyOwner = newError(domain.ErrForbidden, "the server owner cannot be changed")
	ErrInvalidRole       = newError(domain.ErrValidation, "role must be ADMIN, MODERATOR or GUEST")

	ErrChannelNotFound     = newError(domain.ErrNotFound, "channel not found")
	ErrChannelNameTaken    = newError(domain.ErrConflict, "channel name already exists in this server")
	ErrChannelNameReserved = newError(domain.ErrValidation, "channel name \"general\" is reserved")
	ErrInvalidChannelType  = newError(domain.ErrValidation, "channel type must be TEXT, AUDIO or VIDEO")

	ErrConversationSelf = newError(domain.ErrValidation, "cannot start a conversation with yourself")
	ErrNotParticipant   = newError(domain.ErrForbidden, "you are not a participant of this conversation")
	ErrRoomNotFound     = newError(domain.ErrNotFound, "room not found")
	ErrNoMediaRoom      = newError(domain.ErrValidation, "text channels have no media room")

	ErrMessageNotFound = newError(domain.ErrNotFound, "message not found")
	ErrCannotEdit      = newError(domain.ErrForbidden, "only the author can edit a message that is not deleted and has no attachment")
	ErrCannotDelete    = newError(domain.ErrForbidden, "only the author or a moderator can delete this message")
	ErrEmptyMessage    = newError(domain.ErrValidation, "message needs content or a file_url")
	ErrMessageTooLong  = newError(domain.ErrValidation, "message content is too long")
	ErrInvalidCursor   = newError(domain.ErrValidation, "before and after cannot be combined")
)

// Describe returns the client-facing message of the sentinel in err's chain.
func Describe(err error) (string, bool) {
	var se *serviceError
	if errors.As(err, &se) {
		return se.msg, true
	}
	return "", false
}
