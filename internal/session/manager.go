// Package session ties the token issuer, the verifier and the refresh-token
// ledger together into the login, refresh and logout lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Skotchmaster/auth_service/internal/ledger"
	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

type Pair struct {
	AccessToken      string
	RefreshToken     string
	LedgerID         string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type Manager struct {
	issuer   *tokens.Issuer
	verifier *tokens.Verifier
	ledger   ledger.Ledger
}

func NewManager(issuer *tokens.Issuer, verifier *tokens.Verifier, l ledger.Ledger) *Manager {
	return &Manager{issuer: issuer, verifier: verifier, ledger: l}
}

// IssuePair mints an access token, records a ledger entry and mints the
// refresh token bound to it. Nothing is returned unless all three succeed.
func (m *Manager) IssuePair(ctx context.Context, p tokens.Payload) (Pair, error) {
	access, accessExp, err := m.issuer.GenerateAccessToken(p)
	if err != nil {
		return Pair{}, err
	}

	userID, err := strconv.ParseUint(p.Subject, 10, 0)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: subject %q is not a user id", tokens.ErrSigning, p.Subject)
	}

	rec, err := m.ledger.Create(ctx, ledger.Record{
		UserID:    uint(userID),
		ExpiresAt: m.issuer.RefreshExpiry().UTC().Truncate(time.Second),
	})
	if err != nil {
		return Pair{}, err
	}

	p.LedgerID = rec.ID
	refresh, err := m.issuer.GenerateRefreshToken(p, rec.ExpiresAt)
	if err != nil {
		m.discard(ctx, rec.ID, "refresh_sign_failed")
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		LedgerID:         rec.ID,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

func (m *Manager) VerifyAccess(token string) (tokens.Payload, error) {
	return m.verifier.VerifyAccessToken(token)
}

// VerifyRefresh checks the token itself and then that its ledger record is
// still present. It returns the payload and the ledger id.
func (m *Manager) VerifyRefresh(ctx context.Context, token string) (tokens.Payload, string, error) {
	p, err := m.verifier.ParseRefreshToken(token)
	if err != nil {
		return tokens.Payload{}, "", err
	}

	rec, err := m.ledger.Find(ctx, p.LedgerID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return tokens.Payload{}, "", fmt.Errorf("%w: no ledger record %s", tokens.ErrRevokedToken, p.LedgerID)
		}
		return tokens.Payload{}, "", err
	}
	if strconv.FormatUint(uint64(rec.UserID), 10) != p.Subject {
		return tokens.Payload{}, "", fmt.Errorf("%w: ledger record %s belongs to another user", tokens.ErrRevokedToken, p.LedgerID)
	}

	return p, rec.ID, nil
}

// RotateRefresh issues a new pair and only then deletes the old record. The
// delete decides concurrent rotations: the caller that did not remove the old
// record loses, and its freshly created record is dropped again.
func (m *Manager) RotateRefresh(ctx context.Context, oldLedgerID string, p tokens.Payload) (Pair, error) {
	pair, err := m.IssuePair(ctx, p)
	if err != nil {
		return Pair{}, err
	}

	removed, err := m.ledger.Delete(ctx, oldLedgerID)
	if err != nil {
		m.discard(ctx, pair.LedgerID, "rotate_delete_failed")
		return Pair{}, err
	}
	if !removed {
		m.discard(ctx, pair.LedgerID, "rotate_lost_race")
		return Pair{}, fmt.Errorf("%w: ledger record %s already consumed", tokens.ErrRevokedToken, oldLedgerID)
	}

	return pair, nil
}

// Revoke deletes the ledger record. Revoking an absent record is not an error.
func (m *Manager) Revoke(ctx context.Context, ledgerID string) error {
	_, err := m.ledger.Delete(ctx, ledgerID)
	return err
}

// discard removes a record created by a failed operation. It runs even if
// ctx is already cancelled.
func (m *Manager) discard(ctx context.Context, ledgerID, reason string) {
	l := logging.FromContext(ctx)
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := m.ledger.Delete(cleanupCtx, ledgerID); err != nil {
		l.Error("ledger_cleanup_failed", "ledger_id", ledgerID, "reason", reason, "error", err)
		return
	}
	l.Warn("ledger_record_discarded", "ledger_id", ledgerID, "reason", reason)
}
