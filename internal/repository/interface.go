package repository

import (
	"context"
	"io"

	"github.com/CosmoTheDev/anonscan/models"
)

// RepoSource abstracts the code host calls made by a scan run.
type RepoSource interface {
	// GetRepoMetadata returns metadata for a public repository.
	GetRepoMetadata(ctx context.Context, owner, repo string) (*models.RepoMetadata, error)

	// OpenTarball streams the gzip tarball for branch (default branch when empty).
	// The caller must close the returned reader.
	OpenTarball(ctx context.Context, owner, repo, branch string) (io.ReadCloser, error)
}
