package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/auth_service/internal/db"
	"github.com/Skotchmaster/auth_service/internal/keys"
	"github.com/Skotchmaster/auth_service/internal/ledger"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/roles"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

type env struct {
	mgr    *Manager
	ledger *ledger.GormLedger
	db     *gorm.DB
	user   models.User
}

func (e *env) payload() tokens.Payload {
	return tokens.Payload{
		Subject: strconv.FormatUint(uint64(e.user.ID), 10),
		Role:    roles.Customer,
	}
}

func (e *env) ledgerCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.RefreshToken{}).Count(&n).Error)
	return n
}

func newEnv(t *testing.T, material keys.Material, now func() time.Time) *env {
	t.Helper()

	gdb, err := db.Open(context.Background(), db.Options{Driver: db.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	u := models.User{FirstName: "Jo", LastName: "Park", Email: "jo@example.com", PasswordHash: "x", Role: "customer"}
	require.NoError(t, gdb.Create(&u).Error)

	led := ledger.NewGormLedger(gdb)
	var opts []tokens.Option
	if now != nil {
		led.Now = now
		opts = append(opts, tokens.WithClock(now))
	}

	mgr := NewManager(
		tokens.NewIssuer(material, tokens.DefaultIssuer, opts...),
		tokens.NewVerifier(material, tokens.DefaultIssuer, opts...),
		led,
	)
	return &env{mgr: mgr, ledger: led, db: gdb, user: u}
}

func defaultMaterial(t *testing.T) keys.Material {
	return keys.Material{AccessKey: rsaKey(t), RefreshSecret: []byte("refresh-secret")}
}

func TestManager_IssuePairRoundTrip(t *testing.T) {
	e := newEnv(t, defaultMaterial(t), nil)
	ctx := context.Background()

	pair, err := e.mgr.IssuePair(ctx, e.payload())
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEmpty(t, pair.LedgerID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), pair.AccessExpiresAt, 5*time.Second)

	got, err := e.mgr.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, e.payload().Subject, got.Subject)
	assert.Equal(t, roles.Customer, got.Role)

	rp, id, err := e.mgr.VerifyRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.LedgerID, id)
	assert.Equal(t, pair.LedgerID, rp.LedgerID)
	assert.Equal(t, e.payload().Subject, rp.Subject)
	assert.Equal(t, roles.Customer, rp.Role)

	assert.EqualValues(t, 1, e.ledgerCount(t))
}

func TestManager_RevokeIsIdempotent(t *testing.T) {
	e := newEnv(t, defaultMaterial(t), nil)
	ctx := context.Background()

	pair, err := e.mgr.IssuePair(ctx, e.payload())
	require.NoError(t, err)

	require.NoError(t, e.mgr.Revoke(ctx, pair.LedgerID))
	require.NoError(t, e.mgr.Revoke(ctx, pair.LedgerID))

	_, _, err = e.mgr.VerifyRefresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, tokens.ErrRevokedToken)
	assert.EqualValues(t, 0, e.ledgerCount(t))
}

func TestManager_RotationInvalidatesOldToken(t *testing.T) {
	e := newEnv(t, defaultMaterial(t), nil)
	ctx := context.Background()

	first, err := e.mgr.IssuePair(ctx, e.payload())
	require.NoError(t, err)

	p, oldID, err := e.mgr.VerifyRefresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	second, err := e.mgr.RotateRefresh(ctx, oldID, p)
	require.NoError(t, err)
	assert.NotEqual(t, first.LedgerID, second.LedgerID)

	_, _, err = e.mgr.VerifyRefresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, tokens.ErrRevokedToken)

	_, newID, err := e.mgr.VerifyRefresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, second.LedgerID, newID)
	assert.EqualValues(t, 1, e.ledgerCount(t))
}

func TestManager_SecondRotationOfSameTokenFails(t *testing.T) {
	e := newEnv(t, defaultMaterial(t), nil)
	ctx := context.Background()

	first, err := e.mgr.IssuePair(ctx, e.payload())
	require.NoError(t, err)
	p, oldID, err := e.mgr.VerifyRefresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	_, err = e.mgr.RotateRefresh(ctx, oldID, p)
	require.NoError(t, err)

	_, err = e.mgr.RotateRefresh(ctx, oldID, p)
	assert.ErrorIs(t, err, tokens.ErrRevokedToken)
	assert.EqualValues(t, 1, e.ledgerCount(t), "loser's record must be dropped")
}

func TestManager_RefreshExpiryFollowsCalendarYear(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		days int
	}{
		{name: "leap year", now: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), days: 366},
		{name: "common year", now: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), days: 365},
		{name: "century without leap day", now: time.Date(2100, 1, 15, 8, 30, 0, 0, time.UTC), days: 365},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			e := newEnv(t, defaultMaterial(t), func() time.Time { return now })
			ctx := context.Background()

			pair, err := e.mgr.IssuePair(ctx, e.payload())
			require.NoError(t, err)

			want := tt.now.Add(time.Duration(tt.days) * 24 * time.Hour)
			assert.True(t, want.Equal(pair.RefreshExpiresAt), "got %s", pair.RefreshExpiresAt)

			rec, err := e.ledger.Find(ctx, pair.LedgerID)
			require.NoError(t, err)
			assert.True(t, want.Equal(rec.ExpiresAt), "ledger got %s", rec.ExpiresAt)

			_, _, err = e.mgr.VerifyRefresh(ctx, pair.RefreshToken)
			require.NoError(t, err)
		})
	}
}

func TestManager_RefreshExpiryIsWholeSeconds(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 750_000_000, time.UTC)
	e := newEnv(t, defaultMaterial(t), func() time.Time { return now })
	ctx := context.Background()

	pair, err := e.mgr.IssuePair(ctx, e.payload())
	require.NoError(t, err)

	want := now.Add(366 * 24 * time.Hour).Truncate(time.Second)
	assert.True(t, want.Equal(pair.RefreshExpiresAt), "got %s", pair.RefreshExpiresAt)
	assert.Zero(t, pair.RefreshExpiresAt.Nanosecond())

	var claims tokens.RefreshClaims
	_, _, err = jwt.NewParser().ParseUnverified(pair.RefreshToken, &claims)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
	assert.True(t, claims.ExpiresAt.Time.Equal(pair.RefreshExpiresAt), "exp %s", claims.ExpiresAt.Time)

	rec, err := e.ledger.Find(ctx, pair.LedgerID)
	require.NoError(t, err)
	assert.True(t, rec.ExpiresAt.Equal(pair.RefreshExpiresAt))
}

func TestManager_ExpiredRecordIsRevoked(t *testing.T) {
	e := newEnv(t, defaultMaterial(t), nil)
	ctx := context.Background()

	pair, err := e.mgr.IssuePair(ctx, e.payload())
	require.NoError(t, err)

	// signature and exp still pass; only the ledger clock is past expiry
	e.ledger.Now = func() time.Time { return time.Now().AddDate(2, 0, 0) }

	_, _, err = e.mgr.VerifyRefresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, tokens.ErrRevokedToken)
}

func TestManager_TamperedTokensAreInvalid(t *testing.T) {
	e := newEnv(t, defaultMaterial(t), nil)
	ctx := context.Background()

	pair, err := e.mgr.IssuePair(ctx, e.payload())
	require.NoError(t, err)

	_, err = e.mgr.VerifyAccess(tamper(pair.AccessToken))
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)

	_, _, err = e.mgr.VerifyRefresh(ctx, tamper(pair.RefreshToken))
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)

	_, _, err = e.mgr.VerifyRefresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)

	for _, tok := range tamperLast(pair.AccessToken) {
		_, err = e.mgr.VerifyAccess(tok)
		assert.ErrorIs(t, err, tokens.ErrInvalidToken)
	}
	for _, tok := range tamperLast(pair.RefreshToken) {
		_, _, err = e.mgr.VerifyRefresh(ctx, tok)
		assert.ErrorIs(t, err, tokens.ErrInvalidToken)
	}

	// The untouched pair is still good.
	_, _, err = e.mgr.VerifyRefresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestManager_RefreshOfAnotherUsersRecordIsRejected(t *testing.T) {
	e := newEnv(t, defaultMaterial(t), nil)
	ctx := context.Background()

	other := models.User{FirstName: "Al", LastName: "Bo", Email: "al@example.com", PasswordHash: "x", Role: "customer"}
	require.NoError(t, e.db.Create(&other).Error)
	rec, err := e.ledger.Create(ctx, ledger.Record{UserID: other.ID, ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	p := e.payload()
	p.LedgerID = rec.ID
	issuer := tokens.NewIssuer(defaultMaterial(t), tokens.DefaultIssuer)
	forged, err := issuer.GenerateRefreshToken(p, rec.ExpiresAt)
	require.NoError(t, err)

	_, _, err = e.mgr.VerifyRefresh(ctx, forged)
	assert.ErrorIs(t, err, tokens.ErrRevokedToken)
}

func TestManager_IssuePairFailuresLeaveNoRecord(t *testing.T) {
	t.Run("refresh secret missing", func(t *testing.T) {
		e := newEnv(t, keys.Material{AccessKey: rsaKey(t)}, nil)

		_, err := e.mgr.IssuePair(context.Background(), e.payload())
		assert.ErrorIs(t, err, tokens.ErrSigning)
		assert.ErrorIs(t, err, keys.ErrKeyUnavailable)
		assert.EqualValues(t, 0, e.ledgerCount(t))
	})

	t.Run("access key missing", func(t *testing.T) {
		e := newEnv(t, keys.Material{RefreshSecret: []byte("s")}, nil)

		_, err := e.mgr.IssuePair(context.Background(), e.payload())
		assert.ErrorIs(t, err, tokens.ErrSigning)
		assert.EqualValues(t, 0, e.ledgerCount(t))
	})

	t.Run("subject is not a user id", func(t *testing.T) {
		e := newEnv(t, defaultMaterial(t), nil)

		_, err := e.mgr.IssuePair(context.Background(), tokens.Payload{Subject: "abc", Role: roles.Admin})
		assert.ErrorIs(t, err, tokens.ErrSigning)
		assert.EqualValues(t, 0, e.ledgerCount(t))
	})
}

func TestManager_StorageFailureSurfaces(t *testing.T) {
	e := newEnv(t, defaultMaterial(t), nil)
	ctx := context.Background()

	pair, err := e.mgr.IssuePair(ctx, e.payload())
	require.NoError(t, err)

	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = e.mgr.IssuePair(ctx, e.payload())
	assert.ErrorIs(t, err, ledger.ErrPersistence)

	_, _, err = e.mgr.VerifyRefresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ledger.ErrPersistence)

	err = e.mgr.Revoke(ctx, pair.LedgerID)
	assert.ErrorIs(t, err, ledger.ErrPersistence)
}

type failingDelete struct {
	ledger.Ledger
	deletes int
}

func (f *failingDelete) Delete(ctx context.Context, id string) (bool, error) {
	f.deletes++
	if f.deletes == 1 {
		return false, errors.Join(ledger.ErrPersistence, errors.New("connection reset"))
	}
	return f.Ledger.Delete(ctx, id)
}

func TestManager_RotateKeepsOldRecordWhenDeleteFails(t *testing.T) {
	e := newEnv(t, defaultMaterial(t), nil)
	ctx := context.Background()

	first, err := e.mgr.IssuePair(ctx, e.payload())
	require.NoError(t, err)
	p, oldID, err := e.mgr.VerifyRefresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	e.mgr.ledger = &failingDelete{Ledger: e.ledger}
	_, err = e.mgr.RotateRefresh(ctx, oldID, p)
	assert.ErrorIs(t, err, ledger.ErrPersistence)

	// old token still usable, the new record was cleaned up
	e.mgr.ledger = e.ledger
	_, _, err = e.mgr.VerifyRefresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.ledgerCount(t))
}

func tamper(token string) string {
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}

// tamperLast swaps the final signature character for every other base64url
// character.
func tamperLast(token string) []string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	parts := strings.Split(token, ".")
	sig := parts[2]
	var out []string
	for _, c := range alphabet {
		if byte(c) == sig[len(sig)-1] {
			continue
		}
		parts[2] = sig[:len(sig)-1] + string(c)
		out = append(out, strings.Join(parts, "."))
	}
	return out
}
