package repository

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/gregjones/httpcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheableRepoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=60")
		w.Header().Set("ETag", fmt.Sprintf("%q", r.URL.Path))
		_, _ = w.Write([]byte(`{"default_branch":"main"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestResponseCacheStaysAtCapacity(t *testing.T) {
	const capacity = 4
	server := cacheableRepoServer(t)

	cache, err := newResponseCache(capacity)
	require.NoError(t, err)
	client := &http.Client{Transport: httpcache.NewTransport(cache)}

	for i := 0; i <= capacity; i++ {
		resp, err := client.Get(fmt.Sprintf("%s/repos/owner%d/repo", server.URL, i))
		require.NoError(t, err)
		_, _ = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
	}

	assert.Equal(t, capacity, cache.Len())
	_, ok := cache.Get(server.URL + "/repos/owner0/repo")
	assert.False(t, ok, "least recently used response should be evicted")
	_, ok = cache.Get(fmt.Sprintf("%s/repos/owner%d/repo", server.URL, capacity))
	assert.True(t, ok)
}

func TestNewGitHubClientBoundsMetadataCache(t *testing.T) {
	const capacity = 2
	server := cacheableRepoServer(t)

	client, err := NewGitHubClient(config.GitHubConfig{APIURL: server.URL, CacheSize: capacity})
	require.NoError(t, err)
	require.NotNil(t, client.metaCache)

	for i := 0; i < capacity+3; i++ {
		_, err := client.GetRepoMetadata(t.Context(), fmt.Sprintf("owner%d", i), "repo")
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, client.metaCache.Len(), capacity)
}

func TestNewResponseCacheRejectsZeroSize(t *testing.T) {
	_, err := newResponseCache(0)
	assert.Error(t, err)
}
