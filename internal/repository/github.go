package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/CosmoTheDev/anonscan/models"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gogithub "github.com/google/go-github/v68/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"
)

// Compile-time interface satisfaction check.
var _ RepoSource = (*GitHubClient)(nil)

// ErrEmptyTarball is returned when the code host answers with no archive body.
var ErrEmptyTarball = errors.New("empty tarball response")

// UpstreamError is a non-2xx tarball response other than 404.
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tarball request failed with status %d", e.StatusCode)
}

// GitHubClient fetches repository metadata and tarballs from GitHub.
type GitHubClient struct {
	// api serves metadata through an ETag cache.
	api *gogithub.Client
	// archive serves tarballs; archive bodies must never pass through the cache.
	archive *gogithub.Client
	// metaCache backs the api transport; nil when built for tests.
	metaCache *responseCache
}

// NewGitHubClient creates a client with the following transport stack:
//  1. oauth2 static token (only when cfg.Token is set)
//  2. httpcache (ETag-based conditional requests, metadata only, LRU-bounded
//     to cfg.CacheSize entries)
//  3. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  4. go-github
func NewGitHubClient(cfg config.GitHubConfig) (*GitHubClient, error) {
	var base http.RoundTripper = http.DefaultTransport
	if cfg.Token != "" {
		base = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
			Base:   base,
		}
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = config.DefaultGitHubCacheSize
	}
	metaCache, err := newResponseCache(size)
	if err != nil {
		return nil, err
	}
	cacheTransport := httpcache.NewTransport(metaCache)
	cacheTransport.Transport = base
	apiClient := github_ratelimit.NewClient(cacheTransport)
	archiveClient := github_ratelimit.NewClient(base)

	g, err := newGitHubClient(apiClient, archiveClient, cfg.APIURL, cfg.UserAgent)
	if err != nil {
		return nil, err
	}
	g.metaCache = metaCache
	return g, nil
}

// NewGitHubClientWithHTTPClient creates a client that sends every request
// through httpClient to baseURL. Intended for tests against httptest servers.
func NewGitHubClientWithHTTPClient(httpClient *http.Client, baseURL, userAgent string) (*GitHubClient, error) {
	return newGitHubClient(httpClient, httpClient, baseURL, userAgent)
}

func newGitHubClient(apiHTTP, archiveHTTP *http.Client, baseURL, userAgent string) (*GitHubClient, error) {
	api := gogithub.NewClient(apiHTTP)
	archive := gogithub.NewClient(archiveHTTP)

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing GitHub API URL: %w", err)
		}
		api.BaseURL = u
		archive.BaseURL = u
	}
	if userAgent != "" {
		api.UserAgent = userAgent
		archive.UserAgent = userAgent
	}
	return &GitHubClient{api: api, archive: archive}, nil
}

// GetRepoMetadata calls GET /repos/{owner}/{repo}. Any non-2xx answer is
// reported as ErrRepoNotFound. No retries.
func (g *GitHubClient) GetRepoMetadata(ctx context.Context, owner, repo string) (*models.RepoMetadata, error) {
	r, resp, err := g.api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %s/%s (status %d)", ErrRepoNotFound, owner, repo, resp.StatusCode)
		}
		return nil, fmt.Errorf("getting GitHub repo %s/%s: %w", owner, repo, err)
	}

	meta := &models.RepoMetadata{
		DefaultBranch:   r.GetDefaultBranch(),
		StargazersCount: r.GetStargazersCount(),
		Description:     r.GetDescription(),
		Language:        r.GetLanguage(),
	}
	if meta.DefaultBranch == "" {
		meta.DefaultBranch = models.DefaultBranchFallback
	}
	logRateLimit(resp, owner+"/"+repo)
	return meta, nil
}

// OpenTarball calls GET /repos/{owner}/{repo}/tarball[/{branch}] and returns
// the streamed body. The redirect to the archive host is followed by the
// HTTP client.
func (g *GitHubClient) OpenTarball(ctx context.Context, owner, repo, branch string) (io.ReadCloser, error) {
	path := fmt.Sprintf("repos/%s/%s/tarball", url.PathEscape(owner), url.PathEscape(repo))
	if branch != "" {
		segs := strings.Split(branch, "/")
		for i, s := range segs {
			segs[i] = url.PathEscape(s)
		}
		path += "/" + strings.Join(segs, "/")
	}

	req, err := g.archive.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("building tarball request: %w", err)
	}

	resp, err := g.archive.BareDo(ctx, req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s/%s tarball", ErrRepoNotFound, owner, repo)
			}
			if resp.StatusCode >= 300 {
				return nil, &UpstreamError{StatusCode: resp.StatusCode}
			}
		}
		return nil, fmt.Errorf("fetching tarball for %s/%s: %w", owner, repo, err)
	}
	if resp.Body == nil || resp.ContentLength == 0 {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, ErrEmptyTarball
	}
	return resp.Body, nil
}

// RateLimit reports the core API quota, for diagnostics.
func (g *GitHubClient) RateLimit(ctx context.Context) (remaining, limit int, err error) {
	limits, _, err := g.api.RateLimit.Get(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("getting GitHub rate limit: %w", err)
	}
	core := limits.GetCore()
	if core == nil {
		return 0, 0, nil
	}
	return core.Remaining, core.Limit, nil
}

func logRateLimit(resp *gogithub.Response, repo string) {
	if resp == nil {
		return
	}
	slog.Debug("GitHub API call",
		"repo", repo,
		"remaining", resp.Rate.Remaining,
		"limit", resp.Rate.Limit,
		"cached", resp.Header.Get(httpcache.XFromCache) != "",
	)
}
