package anonscan

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CosmoTheDev/anonscan/internal/backend"
	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/CosmoTheDev/anonscan/internal/database"
	"github.com/CosmoTheDev/anonscan/internal/repository"
	"github.com/CosmoTheDev/anonscan/internal/store"
	"github.com/CosmoTheDev/anonscan/models"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRepoURL = "https://github.com/acme/widgets"

type fakeSource struct {
	metaCalls    atomic.Int32
	tarballCalls atomic.Int32
	metaErr      error
	tarballErr   error
	files        map[string]string
	branch       string
}

func (f *fakeSource) GetRepoMetadata(_ context.Context, owner, repo string) (*models.RepoMetadata, error) {
	f.metaCalls.Add(1)
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return &models.RepoMetadata{DefaultBranch: "trunk", StargazersCount: 12, Description: "Widgets", Language: "Python"}, nil
}

func (f *fakeSource) OpenTarball(_ context.Context, owner, repo, branch string) (io.ReadCloser, error) {
	f.tarballCalls.Add(1)
	f.branch = branch
	if f.tarballErr != nil {
		return nil, f.tarballErr
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for name, body := range f.files {
		_ = tw.WriteHeader(&tar.Header{Name: "acme-widgets-sha/" + name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))})
		_, _ = tw.Write([]byte(body))
	}
	_ = tw.Close()
	_ = zw.Close()
	return io.NopCloser(&buf), nil
}

type fakeScanner struct {
	calls  atomic.Int32
	result func() *models.ScanResult
	err    error
	gate   chan struct{}
	files  []models.ExtractedFile
	req    backend.ScanRequest
}

func (f *fakeScanner) Scan(_ context.Context, req backend.ScanRequest, files []models.ExtractedFile) (*models.ScanResult, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.files = files
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result(), nil
}

func conf(v float64) *float64 { return &v }

func defaultResult() *models.ScanResult {
	return &models.ScanResult{
		ScanID: "scan-1",
		Findings: []models.Finding{
			{ID: "a", Severity: models.SeverityCritical, PatternID: "p", Confidence: conf(0.9)},
			{ID: "b", Severity: models.SeverityHigh, PatternID: "p", Confidence: conf(0.2)},
			{ID: "c", Severity: models.SeverityLow, PatternID: "p"},
		},
		FindingsCount: 3,
		CriticalCount: 1,
		HighCount:     1,
		LowCount:      1,
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "scan.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return store.New(database.Wrap(db), store.Options{L1Size: 8, L1TTL: time.Minute})
}

func newTestDispatcher(t *testing.T, coalesce bool) (*Dispatcher, *fakeSource, *fakeScanner, *store.Store) {
	t.Helper()
	src := &fakeSource{files: map[string]string{
		"app/main.py":     "import os\n",
		"README.md":       "# widgets\n",
		"docs/guide.py":   "skip me\n",
		"assets/logo.png": "png",
		"config/app.yaml": "a: 1\n",
	}}
	sc := &fakeScanner{result: defaultResult}
	st := newTestStore(t)
	d := NewDispatcher(src, sc, st, Options{Coalesce: coalesce, ClientVersion: "anonscan/test"})
	return d, src, sc, st
}

func TestRunRejectsInvalidURLWithoutNetwork(t *testing.T) {
	d, src, sc, _ := newTestDispatcher(t, true)

	_, err := d.Run(context.Background(), "https://gitlab.com/acme/widgets", "1.2.3.4")
	var se *ScanError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, CodeInvalidURL, se.Code)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Zero(t, src.metaCalls.Load())
	assert.Zero(t, sc.calls.Load())
}

func TestRunScansAndPersists(t *testing.T) {
	d, src, sc, st := newTestDispatcher(t, false)
	ctx := context.Background()

	rep, err := d.Run(ctx, testRepoURL, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, rep.Cached)
	assert.Equal(t, "acme/widgets", rep.RepoName)
	assert.Equal(t, "trunk", src.branch)

	// Source files first, excluded and non-allowed paths gone.
	var paths []string
	for _, f := range sc.files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, "app/main.py", paths[0])
	assert.ElementsMatch(t, []string{"app/main.py", "README.md", "config/app.yaml"}, paths)
	assert.Equal(t, "acme/widgets", sc.req.AgentName)
	assert.Equal(t, "anonscan/test", sc.req.ClientVersion)

	// Polished: the 0.2 confidence finding is gone and counts follow.
	res := rep.Result
	require.Len(t, res.Findings, 2)
	assert.Equal(t, 2, res.FindingsCount)
	assert.Equal(t, 1, res.CriticalCount)
	assert.Equal(t, 0, res.HighCount)
	assert.Equal(t, 1, res.LowCount)
	assert.Equal(t, 12, res.StargazersCount)
	assert.Equal(t, "trunk", res.DefaultBranch)
	assert.Equal(t, "Python", res.Language)

	row, err := st.GetByID(ctx, rep.ReportID)
	require.NoError(t, err)
	stored, err := row.Result()
	require.NoError(t, err)
	assert.Equal(t, 2, stored.FindingsCount)
	require.NotNil(t, row.IPAddress)
	assert.Equal(t, "1.2.3.4", *row.IPAddress)
}

func TestRunCacheShortCircuit(t *testing.T) {
	d, src, sc, _ := newTestDispatcher(t, true)
	ctx := context.Background()

	first, err := d.Run(ctx, testRepoURL, "1.2.3.4")
	require.NoError(t, err)
	second, err := d.Run(ctx, testRepoURL+"/", "5.6.7.8")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.ReportID, second.ReportID)
	assert.Equal(t, first.Result.FindingsCount, second.Result.FindingsCount)
	assert.Equal(t, int32(1), src.tarballCalls.Load())
	assert.Equal(t, int32(1), sc.calls.Load())
}

func TestRunCoalescesConcurrentRequests(t *testing.T) {
	d, src, sc, _ := newTestDispatcher(t, true)
	sc.gate = make(chan struct{})

	const n = 4
	var wg sync.WaitGroup
	reports := make([]*Report, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = d.Run(context.Background(), testRepoURL, "")
		}(i)
	}

	require.Eventually(t, func() bool { return sc.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	// Give the remaining callers time to join the in-flight run.
	time.Sleep(50 * time.Millisecond)
	close(sc.gate)
	wg.Wait()

	fresh := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, reports[0].ReportID, reports[i].ReportID)
		if !reports[i].Cached {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, int32(1), sc.calls.Load())
	assert.Equal(t, int32(1), src.tarballCalls.Load())
}

func TestRunErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*fakeSource, *fakeScanner)
		code       string
		status     int
		unexpected bool
	}{
		{
			name:   "metadata missing",
			setup:  func(s *fakeSource, _ *fakeScanner) { s.metaErr = repository.ErrRepoNotFound },
			code:   CodeCloneFailed,
			status: http.StatusBadRequest,
		},
		{
			name:   "tarball missing",
			setup:  func(s *fakeSource, _ *fakeScanner) { s.tarballErr = repository.ErrRepoNotFound },
			code:   CodeCloneFailed,
			status: http.StatusNotFound,
		},
		{
			name:       "tarball upstream error",
			setup:      func(s *fakeSource, _ *fakeScanner) { s.tarballErr = &repository.UpstreamError{StatusCode: 503} },
			code:       CodeScanFailed,
			status:     http.StatusInternalServerError,
			unexpected: true,
		},
		{
			name:   "no scannable files",
			setup:  func(s *fakeSource, _ *fakeScanner) { s.files = map[string]string{"docs/a.md": "x", "logo.png": "y"} },
			code:   CodeScanFailed,
			status: http.StatusBadRequest,
		},
		{
			name:   "backend gateway timeout",
			setup:  func(_ *fakeSource, sc *fakeScanner) { sc.err = &backend.StatusError{StatusCode: 504} },
			code:   CodeRepoTooLarge,
			status: http.StatusBadGateway,
		},
		{
			name:   "backend request timeout",
			setup:  func(_ *fakeSource, sc *fakeScanner) { sc.err = &backend.StatusError{StatusCode: 408} },
			code:   CodeRepoTooLarge,
			status: http.StatusBadGateway,
		},
		{
			name:   "backend error",
			setup:  func(_ *fakeSource, sc *fakeScanner) { sc.err = &backend.StatusError{StatusCode: 500, Message: "boom"} },
			code:   CodeScanFailed,
			status: http.StatusBadGateway,
		},
		{
			name:       "backend unreachable",
			setup:      func(_ *fakeSource, sc *fakeScanner) { sc.err = context.DeadlineExceeded },
			code:       CodeScanFailed,
			status:     http.StatusInternalServerError,
			unexpected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, src, sc, st := newTestDispatcher(t, false)
			tt.setup(src, sc)

			_, err := d.Run(context.Background(), testRepoURL, "1.2.3.4")
			require.Error(t, err)

			var direct *ScanError
			assert.Equal(t, !tt.unexpected, errors.As(err, &direct))
			se := AsScanError(err)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.status, se.Status)

			// Nothing persisted on failure.
			_, err = st.FindFresh(context.Background(), "acme/widgets", time.Hour)
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

// stalledSource blocks in GetRepoMetadata until its context ends.
type stalledSource struct {
	fakeSource
	released chan struct{}
}

func (s *stalledSource) GetRepoMetadata(ctx context.Context, owner, repo string) (*models.RepoMetadata, error) {
	s.metaCalls.Add(1)
	<-ctx.Done()
	close(s.released)
	return nil, ctx.Err()
}

func TestRunCoalescedReturnsWhenCallerLeaves(t *testing.T) {
	src := &stalledSource{released: make(chan struct{})}
	d := NewDispatcher(src, &fakeScanner{result: defaultResult}, newTestStore(t), Options{
		Coalesce:   true,
		RunTimeout: 300 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := d.Run(ctx, testRepoURL, "203.0.113.7")
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the caller's context expired")
	}

	// The detached run is still bounded by RunTimeout.
	select {
	case <-src.released:
	case <-time.After(2 * time.Second):
		t.Fatal("coalesced run outlived RunTimeout")
	}
}

func TestRunTimeoutBoundsStalledResolver(t *testing.T) {
	for _, coalesce := range []bool{false, true} {
		src := &stalledSource{released: make(chan struct{})}
		d := NewDispatcher(src, &fakeScanner{result: defaultResult}, newTestStore(t), Options{
			Coalesce:   coalesce,
			RunTimeout: 100 * time.Millisecond,
		})

		start := time.Now()
		_, err := d.Run(context.Background(), testRepoURL, "")
		require.Error(t, err, "coalesce=%v", coalesce)
		assert.Equal(t, CodeCloneFailed, AsScanError(err).Code, "coalesce=%v", coalesce)
		assert.Less(t, time.Since(start), 2*time.Second, "coalesce=%v", coalesce)
	}
}
