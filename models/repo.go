package models

// DefaultBranchFallback is used when the code host omits a default branch.
const DefaultBranchFallback = "main"

// RepoMetadata is the subset of repository metadata carried into a report.
type RepoMetadata struct {
	DefaultBranch   string `json:"default_branch"`
	StargazersCount int    `json:"stargazers_count"`
	Description     string `json:"description"`
	Language        string `json:"language"`
}

// ExtractedFile is a repository file held in memory for one pipeline run.
type ExtractedFile struct {
	Path    string
	Content []byte
}

// Size returns the content length in bytes.
func (f ExtractedFile) Size() int64 { return int64(len(f.Content)) }
