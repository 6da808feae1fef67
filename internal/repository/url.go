package repository

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidURL is returned when a URL is not a canonical GitHub repository URL.
	ErrInvalidURL = errors.New("invalid GitHub repository URL")
	// ErrRepoNotFound covers both absent and private repositories; public-only
	// scanning cannot tell them apart.
	ErrRepoNotFound = errors.New("repository not found or private")
)

var repoURLPattern = regexp.MustCompile(`^https?://github\.com/([a-zA-Z0-9_.-]+)/([a-zA-Z0-9_.-]+)/?$`)

// ParseRepoURL validates raw and returns its owner and repository name.
// No network call is made.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return m[1], m[2], nil
}

// NormalizeRepoName returns the cache key form "owner/repo".
func NormalizeRepoName(owner, repo string) string {
	return owner + "/" + repo
}
