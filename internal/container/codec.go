// Package container builds and opens disguised archive containers: a
// re-encoded thumbnail image immediately followed by a password-protected
// 7z archive of the original file.
//
// No header or separator is written between the two parts. Opening a
// container relies on the archive tool locating its payload past the
// leading image bytes.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwygoda/sts/internal/domain"
)

// ChunkSize is the copy buffer size used by Merge.
const ChunkSize = 4096

// ErrMerge wraps every failure of Merge.
var ErrMerge = errors.New("merge failed")

// Codec merges thumbnails with archives and extracts containers.
type Codec struct {
	archiver domain.ArchiveTool
}

// NewCodec creates a Codec that extracts through archiver.
func NewCodec(archiver domain.ArchiveTool) *Codec {
	return &Codec{archiver: archiver}
}

// Merge writes thumbnailPath followed by archivePath into containerPath.
// Both inputs are removed whatever the outcome. On failure a partially
// written containerPath is left in place for the caller.
func (c *Codec) Merge(thumbnailPath, archivePath, containerPath string) error {
	defer os.Remove(archivePath)
	defer os.Remove(thumbnailPath)

	thumb, err := os.Open(thumbnailPath)
	if err != nil {
		return fmt.Errorf("%w: open thumbnail: %v", ErrMerge, err)
	}
	defer thumb.Close()

	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("%w: open archive: %v", ErrMerge, err)
	}
	defer archive.Close()

	out, err := os.Create(containerPath)
	if err != nil {
		return fmt.Errorf("%w: create container: %v", ErrMerge, err)
	}

	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(onlyWriter{out}, onlyReader{thumb}, buf); err != nil {
		out.Close()
		return fmt.Errorf("%w: copy thumbnail: %v", ErrMerge, err)
	}
	if _, err := io.CopyBuffer(onlyWriter{out}, onlyReader{archive}, buf); err != nil {
		out.Close()
		return fmt.Errorf("%w: copy archive: %v", ErrMerge, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close container: %v", ErrMerge, err)
	}
	return nil
}

// Extract opens containerPath with the archive tool as is. The tool skips
// the thumbnail prefix on its own.
func (c *Codec) Extract(ctx context.Context, containerPath, outputDir, password string) error {
	return c.archiver.Extract(ctx, containerPath, outputDir, password)
}

// onlyReader and onlyWriter hide ReadFrom/WriteTo so io.CopyBuffer streams
// through buf in ChunkSize pieces instead of delegating to the file.
type onlyReader struct{ io.Reader }

type onlyWriter struct{ io.Writer }
