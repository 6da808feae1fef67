package anonscan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CosmoTheDev/anonscan/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterSixthScanRejected(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	rl := NewRateLimiter(st, DefaultScansPerHour)

	for i := 0; i < 5; i++ {
		release, err := rl.Acquire(ctx, "203.0.113.5")
		require.NoError(t, err, "scan %d", i+1)
		_, err = st.Create(ctx, testRepoURL, "acme/widgets", &models.ScanResult{}, "203.0.113.5")
		require.NoError(t, err)
		release()
	}

	_, err := rl.Acquire(ctx, "203.0.113.5")
	var se *ScanError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, CodeRateLimited, se.Code)
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Equal(t, 3600, se.RetryAfter)

	// Other addresses and unknown callers are unaffected.
	release, err := rl.Acquire(ctx, "203.0.113.6")
	require.NoError(t, err)
	release()
	for i := 0; i < 10; i++ {
		release, err := rl.Acquire(ctx, UnknownIP)
		require.NoError(t, err)
		release()
	}
}

func TestRateLimiterCountsInFlight(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter(newTestStore(t), 2)

	r1, err := rl.Acquire(ctx, "198.51.100.7")
	require.NoError(t, err)
	r2, err := rl.Acquire(ctx, "198.51.100.7")
	require.NoError(t, err)

	_, err = rl.Acquire(ctx, "198.51.100.7")
	require.Error(t, err)

	r1()
	r1()
	r3, err := rl.Acquire(ctx, "198.51.100.7")
	require.NoError(t, err)
	r2()
	r3()
}

type countFunc func(ctx context.Context, ip string, window time.Duration) (int, error)

func (f countFunc) CountRecentByIP(ctx context.Context, ip string, window time.Duration) (int, error) {
	return f(ctx, ip, window)
}

func TestRateLimiterStoreError(t *testing.T) {
	rl := NewRateLimiter(countFunc(func(context.Context, string, time.Duration) (int, error) {
		return 0, errors.New("db down")
	}), 5)
	_, err := rl.Acquire(context.Background(), "192.0.2.1")
	require.Error(t, err)
	assert.Equal(t, CodeScanFailed, AsScanError(err).Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		xff, real, remote string
		want, withRemote  string
	}{
		{"203.0.113.1, 10.0.0.1", "198.51.100.1", "10.0.0.2:1234", "203.0.113.1", "203.0.113.1"},
		{"", "198.51.100.1", "10.0.0.2:1234", "198.51.100.1", "198.51.100.1"},
		{" , 10.0.0.1", "198.51.100.9", "10.0.0.2:1234", "198.51.100.9", "198.51.100.9"},
		{"", "", "10.0.0.2:1234", "unknown", "10.0.0.2"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = tt.remote
		if tt.xff != "" {
			r.Header.Set("X-Forwarded-For", tt.xff)
		}
		if tt.real != "" {
			r.Header.Set("X-Real-IP", tt.real)
		}
		assert.Equal(t, tt.want, ClientIP(r))
		assert.Equal(t, tt.withRemote, ClientIPOrRemote(r))
	}
}
