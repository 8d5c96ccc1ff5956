// Package spark provides the chat gateway used by the bot: a minimal
// interface over the Cisco Spark REST API for messages, rooms,
// memberships and people, plus the HTTP client implementing it.
package spark

import "context"

// Gateway is the minimal chat-platform surface the bot consumes.
// List and get operations return ordinary slices and structs so the
// rest of the code stays independent of any particular client library.
type Gateway interface {
	// SendMessage posts markdown text to a room.
	SendMessage(ctx context.Context, roomID, markdown string) error

	// SendMessageToPerson posts markdown text as a 1:1 message.
	SendMessageToPerson(ctx context.Context, email, markdown string) error

	// GetMessage fetches the full content of a message by id.
	GetMessage(ctx context.Context, messageID string) (*Message, error)

	// GetRoom fetches a room by id.
	GetRoom(ctx context.Context, roomID string) (*Room, error)

	// ListRooms lists the rooms the bot is a member of.
	ListRooms(ctx context.Context) ([]Room, error)

	// CreateRoom creates a room with the given title.
	CreateRoom(ctx context.Context, title string) (*Room, error)

	// ListMemberships lists the memberships of a room.
	ListMemberships(ctx context.Context, roomID string) ([]Membership, error)

	// CreateMembership adds a person to a room by person id.
	CreateMembership(ctx context.Context, roomID, personID string) (*Membership, error)

	// InviteByEmail adds a person to a room by email address.
	InviteByEmail(ctx context.Context, roomID, email string) (*Membership, error)

	// GetPerson fetches a person by id.
	GetPerson(ctx context.Context, personID string) (*Person, error)

	// GetPersonByEmail looks up a person by email address.
	// A missing person yields (nil, nil).
	GetPersonByEmail(ctx context.Context, email string) (*Person, error)

	// Me returns the bot's own account.
	Me(ctx context.Context) (*Person, error)
}
