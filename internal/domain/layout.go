package domain

import (
	"path/filepath"
	"strings"
)

// ContainerPrefix marks a file produced by the encrypt pipeline.
const ContainerPrefix = "E_"

// ArchiveExt is appended to a relative path to name the temporary archive.
const ArchiveExt = ".7z"

// Layout derives every path a job reads or writes from its relative path.
// Relative paths are unique, so no two jobs share an output.
type Layout struct {
	SourceDir string
	TargetDir string
}

// Source returns the absolute-or-rooted path of the input file.
func (l Layout) Source(rel string) string {
	return filepath.Join(l.SourceDir, rel)
}

// TargetDirFor returns the directory under the target root mirroring rel.
func (l Layout) TargetDirFor(rel string) string {
	return filepath.Join(l.TargetDir, filepath.Dir(rel))
}

// ArchiveTemp is the temporary archive, e.g. target/a/b.jpg.7z.
func (l Layout) ArchiveTemp(rel string) string {
	return filepath.Join(l.TargetDir, rel) + ArchiveExt
}

// ThumbnailTemp is the temporary thumbnail, named with a doubled extension so
// the encoder still sees the image format, e.g. target/a/b.jpg.jpg.
func (l Layout) ThumbnailTemp(rel string) string {
	return filepath.Join(l.TargetDir, rel) + filepath.Ext(rel)
}

// Container is the final output, e.g. target/a/E_b.jpg.
func (l Layout) Container(rel string) string {
	return filepath.Join(l.TargetDirFor(rel), ContainerPrefix+filepath.Base(rel))
}

// Extension returns the extension of rel without the dot.
func Extension(rel string) string {
	return strings.TrimPrefix(filepath.Ext(rel), ".")
}
