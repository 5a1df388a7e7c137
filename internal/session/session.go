// Package session resolves the chat identity that watch actions are scoped to.
package session

import (
	"context"
	"errors"
	"log/slog"

	"ticketwatch/internal/host"
	"ticketwatch/internal/model"
)

// ErrHostUnavailable means no host was initialized. Startup must stop.
var ErrHostUnavailable = errors.New("messaging host is not initialized")

// Resolve determines the chat identity once. Lookup failures are logged and
// produce an unresolved session rather than an error; only a missing host is
// fatal.
func Resolve(ctx context.Context, h host.Host, log *slog.Logger) (model.Session, error) {
	if h == nil {
		return model.Session{}, ErrHostUnavailable
	}

	if !h.IsInClient() {
		return model.Session{ChatID: profileID(ctx, h, log)}, nil
	}

	hc, err := h.Context(ctx)
	if err != nil {
		log.Warn("inspect host context", "error", err)
		return model.Session{ChatID: profileID(ctx, h, log)}, nil
	}
	if id := contextID(hc); id != "" {
		return model.Session{ChatID: id}, nil
	}
	return model.Session{ChatID: profileID(ctx, h, log)}, nil
}

func contextID(c *host.Context) string {
	if c == nil {
		return ""
	}
	switch c.Type {
	case host.ContextGroup:
		return c.GroupID
	case host.ContextRoom:
		return c.RoomID
	case host.ContextUser:
		return c.UserID
	}
	return ""
}

func profileID(ctx context.Context, h host.Host, log *slog.Logger) string {
	p, err := h.Profile(ctx)
	if err != nil {
		log.Warn("lookup host profile", "error", err)
		return ""
	}
	if p == nil {
		return ""
	}
	return p.UserID
}
