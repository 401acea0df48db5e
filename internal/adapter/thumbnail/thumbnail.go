package thumbnail

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/cwygoda/sts/internal/domain"
)

// Generator writes reduced copies of images using bilinear resampling.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// Resize decodes inputPath, scales it so the longer side equals maxDimension
// and encodes the result in the format named by outputPath's extension.
func (g *Generator) Resize(ctx context.Context, inputPath, outputPath string, maxDimension int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if maxDimension < 1 {
		return fmt.Errorf("invalid max dimension %d", maxDimension)
	}

	src, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode %s: %w", inputPath, err)
	}

	w, h := Dimensions(src.Bounds(), maxDimension)
	dst := imaging.Resize(src, w, h, imaging.Linear)

	if err := imaging.Save(dst, outputPath); err != nil {
		return fmt.Errorf("encode %s: %w", outputPath, err)
	}
	return nil
}

// Dimensions returns the target size for an image with bounds b. The longer
// side becomes maxDimension, the shorter one is truncated but never below 1.
// Square images are treated as portrait.
func Dimensions(b image.Rectangle, maxDimension int) (width, height int) {
	srcW, srcH := b.Dx(), b.Dy()
	if srcW <= 0 || srcH <= 0 {
		return maxDimension, maxDimension
	}
	ratio := float64(srcW) / float64(srcH)
	if srcW > srcH {
		width = maxDimension
		height = int(float64(maxDimension) / ratio)
	} else {
		height = maxDimension
		width = int(float64(maxDimension) * ratio)
	}
	return max(width, 1), max(height, 1)
}

var _ domain.ThumbnailGenerator = (*Generator)(nil)
