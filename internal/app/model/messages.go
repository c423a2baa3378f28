package model

import "github.com/google/uuid"

// LinkCreatedMessage notifies downstream services that a link now exists.
type LinkCreatedMessage struct {
	LinkID uuid.UUID `json:"link_id"`
	UserID uuid.UUID `json:"user_id"`
}

// LinkDeletedMessage notifies downstream services that a link is gone.
type LinkDeletedMessage struct {
	LinkID uuid.UUID `json:"link_id"`
}

// UserDeletedMessage arrives from the identity service when an account is
// removed; every link owned by that user must be purged.
type UserDeletedMessage struct {
	UserID uuid.UUID `json:"user_id"`
}

const (
	LinkStreamName     = "LINK_EVENTS"
	TopicLinkCreated   = "links-new"
	TopicLinkDeleted   = "links-delete"
	UserStreamName     = "USER_EVENTS"
	TopicUserDeleted   = "users-delete"
	UserDeleteConsumer = "links-user-deleted"
)
