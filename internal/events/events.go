// Package events publishes session lifecycle events. Delivery is best effort:
// callers log publish errors and carry on.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	TypeUserRegistered = "user_registered"
	TypeUserLoggedIn   = "user_logged_in"
	TypeTokenRotated   = "token_rotated"
	TypeUserLoggedOut  = "user_logged_out"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     uint      `json:"userId"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func New(typ string, userID uint) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
