package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterTask(t *testing.T) {
	s, err := New(zap.NewNop())
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	noop := func(context.Context) error { return nil }

	require.NoError(t, s.RegisterTask(TaskConfig{ID: "enrich", Name: "Enrich catalogue", Cron: "0 3 * * *", Func: noop}))

	err = s.RegisterTask(TaskConfig{ID: "enrich", Name: "again", Cron: "0 4 * * *", Func: noop})
	assert.ErrorIs(t, err, ErrTaskExists)

	err = s.RegisterTask(TaskConfig{ID: "broken", Name: "broken", Cron: "every tuesday", Func: noop})
	assert.Error(t, err)

	tasks := s.ListTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "enrich", tasks[0].ID)
	assert.False(t, tasks[0].Running)
}

func TestRunOnStartAndRunNow(t *testing.T) {
	s, err := New(zap.NewNop())
	require.NoError(t, err)

	runs := make(chan struct{}, 4)
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:         "enrich",
		Name:       "Enrich catalogue",
		Cron:       "0 3 * * *",
		RunOnStart: true,
		Func: func(context.Context) error {
			runs <- struct{}{}
			return errors.New("provider down")
		},
	}))

	s.Start()
	waitForRun(t, runs)

	require.Eventually(t, func() bool {
		tasks := s.ListTasks()
		return len(tasks) == 1 && tasks[0].LastRun != nil && !tasks[0].Running
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "provider down", s.ListTasks()[0].LastErr)

	require.NoError(t, s.RunNow("enrich"))
	waitForRun(t, runs)

	assert.ErrorIs(t, s.RunNow("missing"), ErrTaskUnknown)
	require.NoError(t, s.Stop())
}

func TestStopCancelsRunningTask(t *testing.T) {
	s, err := New(zap.NewNop())
	require.NoError(t, err)

	started := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "long",
		Name: "Long task",
		Cron: "0 3 * * *",
		Func: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	s.Start()
	require.NoError(t, s.RunNow("long"))
	<-started

	assert.ErrorIs(t, s.RunNow("long"), ErrTaskRunning)
	require.NoError(t, s.Stop())
	assert.Equal(t, context.Canceled.Error(), s.ListTasks()[0].LastErr)
}

func waitForRun(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}
