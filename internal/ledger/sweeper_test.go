package ledger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Skotchmaster/auth_service/internal/logging"
)

type countingLedger struct {
	Ledger
	calls atomic.Int32
	err   error
}

func (c *countingLedger) PurgeExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	cl := &countingLedger{}
	s := &Sweeper{Ledger: cl, Interval: 5 * time.Millisecond, Logger: logging.Discard()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return cl.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_SurvivesErrors(t *testing.T) {
	cl := &countingLedger{err: errors.New("db down")}
	s := &Sweeper{Ledger: cl, Interval: 5 * time.Millisecond, Logger: logging.Discard()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	assert.Eventually(t, func() bool { return cl.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSweeper_ZeroIntervalIsDisabled(t *testing.T) {
	cl := &countingLedger{}
	s := &Sweeper{Ledger: cl, Logger: logging.Discard()}

	s.Run(context.Background())
	assert.Zero(t, cl.calls.Load())
}
