package gateway

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/anonscan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	n       atomic.Int32
	release chan struct{}
}

func (c *countingRunner) Run(ctx context.Context, repoURL, _ string) (*anonscan.Report, error) {
	c.n.Add(1)
	if c.release != nil {
		<-c.release
	}
	return &anonscan.Report{ReportID: "r-" + repoURL, Cached: true}, nil
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.NoError(t, ValidateSchedule("@hourly"))
	assert.Error(t, ValidateSchedule("every tuesday"))
}

func TestSchedulerDisabledAndInvalid(t *testing.T) {
	w := NewWarmer(&countingRunner{}, []string{"https://github.com/acme/widgets"})

	s := newScheduler("", w)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	s = newScheduler("not a cron", w)
	assert.Error(t, s.Start(context.Background()))
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	w := NewWarmer(runner, []string{"https://github.com/acme/widgets"})
	s := newScheduler("@every 1h", w)
	s.ctx = context.Background()

	done := make(chan struct{})
	go func() {
		s.fire()
		close(done)
	}()
	require.Eventually(t, func() bool { return runner.n.Load() == 1 }, time.Second, 5*time.Millisecond)

	// A tick while the first run is blocked is dropped.
	s.fire()
	assert.EqualValues(t, 1, runner.n.Load())

	close(runner.release)
	<-done
}

func TestWarmerStopsOnCancelledContext(t *testing.T) {
	runner := &countingRunner{}
	w := NewWarmer(runner, []string{"https://github.com/a/b", "https://github.com/c/d"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, w.Run(ctx))
	assert.Zero(t, runner.n.Load())
}

func TestWarmerReportsCachedHits(t *testing.T) {
	w := NewWarmer(&countingRunner{}, []string{"https://github.com/a/b"})
	out := w.Run(context.Background())
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].Status)
	assert.True(t, out[0].Cached)
	assert.Equal(t, "r-https://github.com/a/b", out[0].ReportID)
}
