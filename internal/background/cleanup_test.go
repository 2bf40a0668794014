package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/authgate/internal/services"
)

// MockSweeper implements Sweeper for testing
type MockSweeper struct {
	calls      atomic.Int32
	RunAllFunc func(ctx context.Context) (*services.SweepReport, error)
}

func (m *MockSweeper) RunAll(ctx context.Context) (*services.SweepReport, error) {
	m.calls.Add(1)
	if m.RunAllFunc != nil {
		return m.RunAllFunc(ctx)
	}
	return &services.SweepReport{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanupManager_RunOnce_ReturnsReport(t *testing.T) {
	sweeper := &MockSweeper{
		RunAllFunc: func(ctx context.Context) (*services.SweepReport, error) {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return &services.SweepReport{ExpiredSessions: 3}, nil
		},
	}
	cm := NewCleanupManager(sweeper, testLogger(), time.Hour)

	report := cm.RunOnce(context.Background())

	assert.Equal(t, int64(3), report.ExpiredSessions)
}

func TestCleanupManager_RunOnce_PartialFailureStillReports(t *testing.T) {
	sweeper := &MockSweeper{
		RunAllFunc: func(context.Context) (*services.SweepReport, error) {
			return &services.SweepReport{BlacklistPurged: 2}, errors.New("sessions: connection reset")
		},
	}
	cm := NewCleanupManager(sweeper, testLogger(), time.Hour)

	report := cm.RunOnce(context.Background())

	assert.Equal(t, int64(2), report.BlacklistPurged)
}

func TestCleanupManager_Start_RunsImmediatelyAndStops(t *testing.T) {
	sweeper := &MockSweeper{}
	cm := NewCleanupManager(sweeper, testLogger(), time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManager_Start_StopsOnContextCancel(t *testing.T) {
	sweeper := &MockSweeper{}
	cm := NewCleanupManager(sweeper, testLogger(), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop on cancel")
	}
}
