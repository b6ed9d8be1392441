package service

import "errors"

var (
	// ErrConversationNotFound indicates the conversation id has no matching row.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMessageNotFound indicates the message id has no matching row.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotParticipant indicates the acting user is neither the employer nor the student of the conversation.
	ErrNotParticipant = errors.New("user is not a participant of the conversation")
	// ErrInvalidParticipant indicates an employer or student id that does not resolve to a user with that role.
	ErrInvalidParticipant = errors.New("invalid conversation participant")
	// ErrParticipantSuspended indicates a suspended account tried to open a conversation.
	ErrParticipantSuspended = errors.New("participant account suspended")
	// ErrInvalidRole indicates a role other than student or employer was supplied for a listing.
	ErrInvalidRole = errors.New("role must be student or employer")
	// ErrEmptyContent indicates a message with no content left after sanitisation.
	ErrEmptyContent = errors.New("message content empty after sanitization")
	// ErrInvalidID indicates a missing or zero identifier.
	ErrInvalidID = errors.New("invalid identifier")
)
