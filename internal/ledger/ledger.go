// Package ledger persists refresh-token records. A refresh token is honoured
// only while the record named by its jti exists and has not expired.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("ledger record not found")
	ErrPersistence = errors.New("ledger storage failure")
)

type Record struct {
	ID        string
	UserID    uint
	ExpiresAt time.Time
}

func (r Record) expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

type Ledger interface {
	// Create stores rec and returns it with its generated ID. The record is
	// durable once Create returns.
	Create(ctx context.Context, rec Record) (Record, error)
	// Delete removes the record if present and reports whether it did.
	// Deleting an absent ID is not an error.
	Delete(ctx context.Context, id string) (bool, error)
	// Find returns ErrNotFound for absent and for expired records.
	Find(ctx context.Context, id string) (Record, error)
	// PurgeExpired removes records past their expiry.
	PurgeExpired(ctx context.Context) (int64, error)
}
