package worker

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwygoda/sts/internal/adapter/sevenzip"
	"github.com/cwygoda/sts/internal/adapter/thumbnail"
	"github.com/cwygoda/sts/internal/domain"
)

func TestEngine_SevenZipRoundTrip(t *testing.T) {
	bin, err := sevenzip.Resolve("", sevenzip.Candidates)
	if err != nil {
		t.Skip("7-Zip not installed")
	}
	archiver := sevenzip.New(bin, 1)
	thumbs := thumbnail.New()

	src, enc, dec := t.TempDir(), t.TempDir(), t.TempDir()
	rels := []string{"wide.png", filepath.Join("album", "tall.jpg")}
	for i, rel := range rels {
		p := filepath.Join(src, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		w, h := 320, 160
		if i == 1 {
			w, h = 120, 240
		}
		img := imaging.New(w, h, color.NRGBA{R: uint8(40 * i), G: 120, B: 200, A: 255})
		require.NoError(t, imaging.Save(img, p))
	}

	e := NewEngine(archiver, thumbs, Options{
		Layout:       domain.Layout{SourceDir: src, TargetDir: enc},
		Password:     "s3cret",
		MaxDimension: 50,
		Workers:      2,
	}, nil)
	run, err := e.Run(context.Background(), domain.Encrypt, rels)
	require.NoError(t, err)
	require.True(t, run.Summary().OK(), "failures: %v", run.Summary().Failures)

	containers := []string{"E_wide.png", filepath.Join("album", "E_tall.jpg")}
	assert.Equal(t, containers, listFiles(t, enc))

	// The container still opens as the thumbnail image.
	preview, err := imaging.Open(filepath.Join(enc, "E_wide.png"))
	require.NoError(t, err)
	assert.Equal(t, 50, preview.Bounds().Dx())
	assert.Equal(t, 25, preview.Bounds().Dy())

	wrong := NewEngine(archiver, thumbs, Options{
		Layout:   domain.Layout{SourceDir: enc, TargetDir: t.TempDir()},
		Password: "nope",
		Workers:  2,
	}, nil)
	run, err = wrong.Run(context.Background(), domain.Decrypt, containers)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Summary().Failed)

	d := NewEngine(archiver, thumbs, Options{
		Layout:   domain.Layout{SourceDir: enc, TargetDir: dec},
		Password: "s3cret",
		Workers:  2,
	}, nil)
	run, err = d.Run(context.Background(), domain.Decrypt, containers)
	require.NoError(t, err)
	require.True(t, run.Summary().OK(), "failures: %v", run.Summary().Failures)

	for _, rel := range rels {
		want, err := os.ReadFile(filepath.Join(src, rel))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(dec, rel))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, got), "%s differs after round trip", rel)
	}
}
