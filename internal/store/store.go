package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a queried record does not exist.
var ErrNotFound = errors.New("store: not found")

// User is a registered account. JSON field names follow the client wire
// format, so the record can be returned from handlers as-is.
type User struct {
	ID         string    `json:"_id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Password   string    `json:"-"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Message is a durable direct message. At least one of Text/Image is set
// (enforced by the send handler). Messages are immutable once created.
type Message struct {
	ID         int64     `json:"_id,string"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store is the durable backend for users and messages. PostgresStore and
// SQLiteStore implement it.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// CreateUser assigns ID and CreatedAt and persists u.
	CreateUser(ctx context.Context, u *User) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	// ListUsersExcept returns every user except the given one, for the
	// contacts sidebar.
	ListUsersExcept(ctx context.Context, id string) ([]User, error)
	UpdateProfilePic(ctx context.Context, id, url string) (*User, error)

	// CreateMessage assigns ID and CreatedAt and persists the message.
	CreateMessage(ctx context.Context, senderID, receiverID, text, image string) (*Message, error)
	// MessagesBetween returns every message exchanged between a and b, in
	// either direction, in creation order.
	MessagesBetween(ctx context.Context, a, b string) ([]Message, error)
}
