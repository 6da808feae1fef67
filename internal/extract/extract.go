// Package extract turns a repository tarball stream into a bounded set of
// in-memory source files.
package extract

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/CosmoTheDev/anonscan/models"
	"github.com/klauspost/compress/gzip"
)

// ErrEmptyArchive is returned when the stream ends before a gzip header.
var ErrEmptyArchive = errors.New("empty archive")

// binarySniffLen is how many leading bytes are checked for a NUL byte.
const binarySniffLen = 512

// AllowedExtensions are the file types kept during extraction.
var AllowedExtensions = map[string]bool{
	".py": true, ".ts": true, ".js": true, ".jsx": true, ".tsx": true,
	".go": true, ".java": true, ".rb": true,
	".json": true, ".yaml": true, ".yml": true, ".md": true,
}

// Limits bounds resource use for one extraction.
type Limits struct {
	MaxFiles      int
	MaxFileBytes  int64
	MaxTotalBytes int64
}

// DefaultLimits returns 500 files, 1 MiB per file and 50 MiB in total.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:      500,
		MaxFileBytes:  1 << 20,
		MaxTotalBytes: 50 << 20,
	}
}

// Stats describes what an extraction kept and skipped.
type Stats struct {
	Entries    int
	Kept       int
	KeptBytes  int64
	Skipped    int
	Binary     int
	Oversized  int
	CapReached bool
}

// Extract streams r through gunzip and tar and returns the allowed files.
// Only kept entries are buffered, each through a reader capped one byte
// past MaxFileBytes. A gzip or tar stream error fails the whole extraction.
func Extract(r io.Reader, limits Limits) ([]models.ExtractedFile, Stats, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, Stats{}, ErrEmptyArchive
		}
		return nil, Stats{}, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	x := &extractor{limits: limits}
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, x.stats, fmt.Errorf("reading tar stream: %w", err)
		}
		if err := x.consume(hdr, tr); err != nil {
			return nil, x.stats, err
		}
	}
	return x.files, x.stats, nil
}

type extractor struct {
	limits Limits
	files  []models.ExtractedFile
	total  int64
	stats  Stats
}

// consume decides whether to keep one entry. Skipped entries are not read;
// the tar reader discards their remaining bytes on the next call to Next.
func (x *extractor) consume(hdr *tar.Header, body io.Reader) error {
	x.stats.Entries++

	if hdr.Typeflag != tar.TypeReg {
		x.stats.Skipped++
		return nil
	}
	rel := stripTopLevel(hdr.Name)
	if rel == "" || !AllowedExtensions[strings.ToLower(path.Ext(rel))] {
		x.stats.Skipped++
		return nil
	}
	if len(x.files) >= x.limits.MaxFiles {
		x.stats.CapReached = true
		x.stats.Skipped++
		return nil
	}
	if hdr.Size > x.limits.MaxFileBytes || x.total+hdr.Size > x.limits.MaxTotalBytes {
		x.stats.Oversized++
		return nil
	}

	// Declared sizes are not trusted; the observed length decides.
	data, err := io.ReadAll(io.LimitReader(body, x.limits.MaxFileBytes+1))
	if err != nil {
		return fmt.Errorf("reading %s: %w", rel, err)
	}
	size := int64(len(data))
	if size > x.limits.MaxFileBytes || x.total+size > x.limits.MaxTotalBytes {
		x.stats.Oversized++
		return nil
	}
	if isBinary(data) {
		x.stats.Binary++
		return nil
	}

	x.files = append(x.files, models.ExtractedFile{Path: rel, Content: data})
	x.total += size
	x.stats.Kept++
	x.stats.KeptBytes = x.total
	return nil
}

// stripTopLevel removes the single directory the code host prefixes to
// every archive entry ("owner-repo-sha/src/a.py" becomes "src/a.py").
func stripTopLevel(name string) string {
	name = strings.TrimPrefix(name, "./")
	i := strings.IndexByte(name, '/')
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

func isBinary(data []byte) bool {
	head := data
	if len(head) > binarySniffLen {
		head = head[:binarySniffLen]
	}
	return bytes.IndexByte(head, 0) >= 0
}
