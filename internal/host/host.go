// Package host abstracts the messaging platform the client is launched from.
// Every call is fallible; callers must cope with a host that cannot answer.
package host

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by hosts that lack a capability.
var ErrUnsupported = errors.New("host: capability not supported")

// ContextType classifies the conversation the client was opened from.
type ContextType string

// Conversation kinds.
const (
	ContextNone  ContextType = ""
	ContextUser  ContextType = "user"
	ContextGroup ContextType = "group"
	ContextRoom  ContextType = "room"
)

// Context describes the launch conversation.
type Context struct {
	Type    ContextType
	GroupID string
	RoomID  string
	UserID  string
}

// Profile is the launching user.
type Profile struct {
	UserID      string
	DisplayName string
}

// Message is an outbound text message.
type Message struct {
	Text string
}

// Host is the messaging platform capability.
type Host interface {
	// IsInClient reports whether the client runs inside a host conversation.
	IsInClient() bool
	Context(ctx context.Context) (*Context, error)
	Profile(ctx context.Context) (*Profile, error)
	SendMessages(ctx context.Context, msgs []Message) error
}

// Local is a host for running outside any messaging client. Its profile is
// fixed at construction and it cannot send messages.
type Local struct {
	UserID string
}

// IsInClient always reports false.
func (Local) IsInClient() bool { return false }

// Context is unsupported outside a client.
func (Local) Context(context.Context) (*Context, error) { return nil, ErrUnsupported }

// Profile returns the configured user, or ErrUnsupported when none is set.
func (l Local) Profile(context.Context) (*Profile, error) {
	if l.UserID == "" {
		return nil, ErrUnsupported
	}
	return &Profile{UserID: l.UserID}, nil
}

// SendMessages is unsupported outside a client.
func (Local) SendMessages(context.Context, []Message) error { return ErrUnsupported }
