package domain

import "context"

// ArchiveTool compresses and extracts single files with a password.
type ArchiveTool interface {
	Compress(ctx context.Context, inputPath, outputPath, password string) error
	Extract(ctx context.Context, inputPath, outputDir, password string) error
}

// ThumbnailGenerator writes a reduced re-encoding of one image whose longer
// side equals maxDimension.
type ThumbnailGenerator interface {
	Resize(ctx context.Context, inputPath, outputPath string, maxDimension int) error
}

// FileScanner enumerates candidate paths relative to root.
type FileScanner interface {
	Scan(root string, extensions []string, recursive bool) ([]string, error)
}

// RunRepository is the driven port for run history persistence.
type RunRepository interface {
	Save(ctx context.Context, run RunSummary) error
	Get(ctx context.Context, id string) (*RunSummary, error)
	List(ctx context.Context, limit int) ([]RunSummary, error)
}
