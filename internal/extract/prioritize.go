package extract

import (
	"path"
	"strings"

	"github.com/CosmoTheDev/anonscan/models"
)

// DefaultMaxScanFiles is how many prioritised files are sent to the backend.
const DefaultMaxScanFiles = 100

// excludedPrefixes are tooling, docs and vendored trees that rarely hold
// first-party logic. Matched case-insensitively.
var excludedPrefixes = []string{
	".github/",
	".circleci/",
	".vscode/",
	"docs/",
	"examples/",
	"__pycache__/",
	"node_modules/",
	"vendor/",
	".claude/",
}

var sourceExtensions = map[string]bool{
	".py": true, ".ts": true, ".js": true, ".jsx": true, ".tsx": true,
	".go": true, ".java": true, ".rb": true,
}

// Prioritize drops excluded paths, moves source files ahead of config and
// docs while keeping relative order inside each group, and truncates to max.
// It does not modify files.
func Prioritize(files []models.ExtractedFile, max int) []models.ExtractedFile {
	var source, other []models.ExtractedFile
	for _, f := range files {
		if excluded(f.Path) {
			continue
		}
		if IsSourceFile(f.Path) {
			source = append(source, f)
		} else {
			other = append(other, f)
		}
	}

	out := make([]models.ExtractedFile, 0, len(source)+len(other))
	out = append(out, source...)
	out = append(out, other...)
	if max >= 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// IsSourceFile reports whether p has a programming-language extension.
func IsSourceFile(p string) bool {
	return sourceExtensions[strings.ToLower(path.Ext(p))]
}

func excluded(p string) bool {
	lower := strings.ToLower(p)
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
