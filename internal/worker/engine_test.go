package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwygoda/sts/internal/domain"
)

const archiveMarker = "|7z|"

// fakeArchiver writes the marker followed by the input bytes as the
// "archive" and reverses that on extract.
type fakeArchiver struct {
	password string
	fail     map[string]bool

	gate     chan struct{}
	inflight atomic.Int32
	peak     atomic.Int32
}

func (a *fakeArchiver) Compress(ctx context.Context, in, out, password string) error {
	n := a.inflight.Add(1)
	defer a.inflight.Add(-1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if a.gate != nil {
		<-a.gate
	}

	if a.fail[filepath.Base(in)] {
		os.WriteFile(out, []byte("partial"), 0644)
		return errors.New("compress failed")
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, append([]byte(archiveMarker+password+archiveMarker), data...), 0644)
}

func (a *fakeArchiver) Extract(ctx context.Context, in, outDir, password string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	parts := bytes.SplitN(data, []byte(archiveMarker), 3)
	if len(parts) != 3 {
		return errors.New("no archive found")
	}
	if string(parts[1]) != password {
		return errors.New("wrong password")
	}
	name := strings.TrimPrefix(filepath.Base(in), domain.ContainerPrefix)
	return os.WriteFile(filepath.Join(outDir, name), parts[2], 0644)
}

type fakeThumbs struct {
	fail map[string]bool
}

func (g *fakeThumbs) Resize(ctx context.Context, in, out string, maxDimension int) error {
	if g.fail[filepath.Base(in)] {
		os.WriteFile(out, []byte("half"), 0644)
		return errors.New("decode failed")
	}
	return os.WriteFile(out, []byte(fmt.Sprintf("thumb%d", maxDimension)), 0644)
}

type recordingProgress struct {
	mu       sync.Mutex
	updates  int
	finished bool
	stopped  bool
}

func (p *recordingProgress) Update(*domain.BatchRun) {
	p.mu.Lock()
	p.updates++
	p.mu.Unlock()
}

func (p *recordingProgress) Finish(*domain.BatchRun) {
	p.mu.Lock()
	p.finished = true
	p.mu.Unlock()
}

func (p *recordingProgress) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func writeSources(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("original:"+rel), 0644))
	}
}

// listFiles returns every regular file below root, relative and sorted.
func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			out = append(out, rel)
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func TestEngine_EncryptThenDecrypt(t *testing.T) {
	src, enc, dec := t.TempDir(), t.TempDir(), t.TempDir()
	rels := []string{"a.jpg", "b.png", filepath.Join("sub", "c.jpg"), filepath.Join("sub", "deep", "d.jpeg")}
	writeSources(t, src, rels...)

	archiver := &fakeArchiver{}
	prog := &recordingProgress{}
	e := NewEngine(archiver, &fakeThumbs{}, Options{
		Layout:       domain.Layout{SourceDir: src, TargetDir: enc},
		Password:     "pw",
		MaxDimension: 50,
		Workers:      2,
	}, prog)

	run, err := e.Run(context.Background(), domain.Encrypt, rels)
	require.NoError(t, err)
	sum := run.Summary()
	assert.True(t, sum.OK())
	assert.Equal(t, 4, sum.Succeeded)
	assert.Equal(t, 4, prog.updates)
	assert.True(t, prog.finished)

	want := []string{
		"E_a.jpg",
		"E_b.png",
		filepath.Join("sub", "E_c.jpg"),
		filepath.Join("sub", "deep", "E_d.jpeg"),
	}
	assert.Equal(t, want, listFiles(t, enc), "only containers remain in the target")

	data, err := os.ReadFile(filepath.Join(enc, "sub", "E_c.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "thumb50|7z|pw|7z|original:"+filepath.Join("sub", "c.jpg"), string(data))

	d := NewEngine(archiver, &fakeThumbs{}, Options{
		Layout:   domain.Layout{SourceDir: enc, TargetDir: dec},
		Password: "pw",
		Workers:  3,
	}, nil)
	run, err = d.Run(context.Background(), domain.Decrypt, want)
	require.NoError(t, err)
	assert.True(t, run.Summary().OK())

	for _, rel := range rels {
		got, err := os.ReadFile(filepath.Join(dec, rel))
		require.NoError(t, err)
		assert.Equal(t, "original:"+rel, string(got))
	}
}

func TestEngine_AdditiveFlags(t *testing.T) {
	tests := []struct {
		name          string
		failCompress  bool
		failThumbnail bool
		want          domain.ErrorFlags
	}{
		{"success", false, false, 0},
		{"compress", true, false, domain.ArchiveStageFailed | domain.MergeStageFailed},
		{"thumbnail", false, true, domain.ThumbnailStageFailed | domain.MergeStageFailed},
		{"both", true, true, domain.ArchiveStageFailed | domain.ThumbnailStageFailed | domain.MergeStageFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dst := t.TempDir(), t.TempDir()
			writeSources(t, src, "x.jpg")
			archiver := &fakeArchiver{fail: map[string]bool{"x.jpg": tt.failCompress}}
			thumbs := &fakeThumbs{fail: map[string]bool{"x.jpg": tt.failThumbnail}}
			e := NewEngine(archiver, thumbs, Options{
				Layout:       domain.Layout{SourceDir: src, TargetDir: dst},
				Password:     "pw",
				MaxDimension: 50,
				Workers:      1,
			}, nil)

			run, err := e.Run(context.Background(), domain.Encrypt, []string{"x.jpg"})
			require.NoError(t, err)
			sum := run.Summary()

			if tt.want == 0 {
				assert.Equal(t, 1, sum.Succeeded)
				assert.Empty(t, sum.Failures)
				assert.Equal(t, []string{"E_x.jpg"}, listFiles(t, dst))
				return
			}
			assert.Equal(t, 1, sum.Failed)
			require.Len(t, sum.Failures, 1)
			assert.Equal(t, domain.Failure{Path: "x.jpg", Flags: tt.want}, sum.Failures[0])
			assert.Empty(t, listFiles(t, dst), "no temp files or partial container")
		})
	}
}

func TestEngine_EveryPathInOneBucket(t *testing.T) {
	const m = 60
	src, dst := t.TempDir(), t.TempDir()
	rels := make([]string, m)
	fail := map[string]bool{}
	for i := range rels {
		rels[i] = fmt.Sprintf("img%02d.jpg", i)
		if i%7 == 0 {
			fail[rels[i]] = true
		}
	}
	writeSources(t, src, rels...)

	e := NewEngine(&fakeArchiver{fail: fail}, &fakeThumbs{}, Options{
		Layout:       domain.Layout{SourceDir: src, TargetDir: dst},
		Password:     "pw",
		MaxDimension: 10,
		Workers:      4,
	}, nil)
	run, err := e.Run(context.Background(), domain.Encrypt, rels)
	require.NoError(t, err)

	sum := run.Summary()
	assert.Equal(t, m, sum.Succeeded+sum.Failed)
	assert.Equal(t, len(fail), sum.Failed)

	failed := map[string]bool{}
	for _, f := range sum.Failures {
		assert.False(t, failed[f.Path], "duplicate failure %s", f.Path)
		failed[f.Path] = true
	}
	for _, rel := range rels {
		_, statErr := os.Stat(filepath.Join(dst, domain.ContainerPrefix+rel))
		if failed[rel] {
			assert.True(t, os.IsNotExist(statErr), "%s failed but has a container", rel)
		} else {
			assert.NoError(t, statErr, "%s succeeded without a container", rel)
		}
	}
}

func TestEngine_WorkerBound(t *testing.T) {
	const workers = 3
	src, dst := t.TempDir(), t.TempDir()
	rels := make([]string, 12)
	for i := range rels {
		rels[i] = fmt.Sprintf("%d.png", i)
	}
	writeSources(t, src, rels...)

	archiver := &fakeArchiver{gate: make(chan struct{})}
	e := NewEngine(archiver, &fakeThumbs{}, Options{
		Layout:       domain.Layout{SourceDir: src, TargetDir: dst},
		Password:     "pw",
		MaxDimension: 10,
		Workers:      workers,
	}, nil)

	type result struct {
		run *domain.BatchRun
		err error
	}
	res := make(chan result, 1)
	go func() {
		run, err := e.Run(context.Background(), domain.Encrypt, rels)
		res <- result{run, err}
	}()

	require.Eventually(t, func() bool {
		return archiver.inflight.Load() == workers
	}, 5*time.Second, 5*time.Millisecond)
	close(archiver.gate)

	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, len(rels), r.run.Summary().Succeeded)
	assert.Equal(t, int32(workers), archiver.peak.Load())
}

func TestEngine_WrongPassword(t *testing.T) {
	src, enc, dec := t.TempDir(), t.TempDir(), t.TempDir()
	writeSources(t, src, "a.jpg", "b.jpg")
	archiver := &fakeArchiver{}
	layout := domain.Layout{SourceDir: src, TargetDir: enc}
	_, err := NewEngine(archiver, &fakeThumbs{}, Options{Layout: layout, Password: "right", MaxDimension: 5}, nil).
		Run(context.Background(), domain.Encrypt, []string{"a.jpg", "b.jpg"})
	require.NoError(t, err)

	e := NewEngine(archiver, &fakeThumbs{}, Options{
		Layout:   domain.Layout{SourceDir: enc, TargetDir: dec},
		Password: "wrong",
		Workers:  2,
	}, nil)
	run, err := e.Run(context.Background(), domain.Decrypt, []string{"E_a.jpg", "E_b.jpg"})
	require.NoError(t, err)

	sum := run.Summary()
	assert.Equal(t, 0, sum.Succeeded)
	assert.Equal(t, 2, sum.Failed)
	for _, f := range sum.Failures {
		assert.Equal(t, domain.ExtractStageFailed, f.Flags)
	}
	assert.Empty(t, listFiles(t, dec))
}

func TestEngine_Timeout(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeSources(t, src, "a.jpg", "b.jpg")

	// The gate is never opened; the blocked workers are abandoned.
	archiver := &fakeArchiver{gate: make(chan struct{})}
	prog := &recordingProgress{}
	e := NewEngine(archiver, &fakeThumbs{}, Options{
		Layout:       domain.Layout{SourceDir: src, TargetDir: dst},
		Password:     "pw",
		MaxDimension: 5,
		Workers:      1,
		Timeout:      50 * time.Millisecond,
	}, prog)

	run, err := e.Run(context.Background(), domain.Encrypt, []string{"a.jpg", "b.jpg"})
	assert.ErrorIs(t, err, domain.ErrIncomplete)
	require.NotNil(t, run)

	sum := run.Summary()
	assert.True(t, sum.Incomplete)
	assert.False(t, sum.OK())
	assert.Equal(t, 0, sum.Succeeded+sum.Failed)

	prog.mu.Lock()
	defer prog.mu.Unlock()
	assert.True(t, prog.stopped)
	assert.False(t, prog.finished)
}

func TestEngine_NoJobs(t *testing.T) {
	prog := &recordingProgress{}
	e := NewEngine(&fakeArchiver{}, &fakeThumbs{}, Options{Workers: 4}, prog)

	run, err := e.Run(context.Background(), domain.Encrypt, nil)
	require.NoError(t, err)
	assert.True(t, run.Summary().OK())
	assert.Equal(t, 100, run.Snapshot().Percent())
	assert.True(t, prog.finished)
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(&fakeArchiver{}, &fakeThumbs{}, Options{}, nil)
	assert.Equal(t, 1, e.opts.Workers)
	assert.Equal(t, DefaultTimeout, e.opts.Timeout)
	assert.NotNil(t, e.progress)
}
