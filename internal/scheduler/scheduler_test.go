package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPruner struct {
	mock.Mock
}

func (m *mockPruner) PruneNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestAddJobValidation(t *testing.T) {
	s := NewScheduler(quietLogger())
	assert.Error(t, s.AddJob(Job{Name: "no-interval", Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.AddJob(Job{Name: "no-run", Interval: time.Second}))
	assert.NoError(t, s.AddJob(Job{Name: "ok", Interval: time.Second, Run: func(context.Context) error { return nil }}))
}

func TestSchedulerRunsAtStartupAndOnTicks(t *testing.T) {
	s := NewScheduler(quietLogger())

	var runs int32
	require.NoError(t, s.AddJob(Job{
		Name:     "count",
		Interval: 20 * time.Millisecond,
		Run: func(context.Context) error {
			if atomic.AddInt32(&runs, 1) == 2 {
				return errors.New("failures are logged, not fatal")
			}
			return nil
		},
	}))

	s.Start()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := atomic.LoadInt32(&runs)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs), "no runs after Stop")
}

func TestNotificationPruneJob(t *testing.T) {
	pruner := &mockPruner{}
	retention := 30 * 24 * time.Hour

	pruner.On("PruneNotifications", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		expected := time.Now().UTC().Add(-retention)
		return cutoff.Sub(expected).Abs() < time.Minute
	})).Return(int64(4), nil).Once()

	job := NotificationPruneJob(pruner, retention, time.Hour, quietLogger())
	assert.Equal(t, "prune_notifications", job.Name)
	assert.Equal(t, time.Hour, job.Interval)
	require.NoError(t, job.Run(context.Background()))
	pruner.AssertExpectations(t)

	pruner.On("PruneNotifications", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down")).Once()
	assert.Error(t, job.Run(context.Background()))
}
