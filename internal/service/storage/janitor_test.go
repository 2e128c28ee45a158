package storage

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/media-grabber/internal/constants"
	"github.com/oshokin/media-grabber/internal/model"
)

func newTestJanitor(t *testing.T) *Janitor {
	t.Helper()

	janitor, err := NewJanitor(filepath.Join(t.TempDir(), "downloads"))
	require.NoError(t, err)

	return janitor
}

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), constants.DefaultFilePermissions))
}

// TestResolve tests the path traversal defense.
func TestResolve(t *testing.T) {
	t.Parallel()

	janitor := newTestJanitor(t)
	writeFile(t, janitor.Root(), "clip.mp4", 10)
	writeFile(t, filepath.Dir(janitor.Root()), "secret.txt", 10)
	require.NoError(t, os.Mkdir(filepath.Join(janitor.Root(), "folder"), constants.DefaultFolderPermissions))
	writeFile(t, janitor.Root(), "pending.mp4.part", 10)

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "regular file", input: "clip.mp4"},
		{name: "parent", input: "..", wantErr: ErrForbiddenPath},
		{name: "traversal", input: "../secret.txt", wantErr: ErrForbiddenPath},
		{name: "nested traversal", input: "folder/../../secret.txt", wantErr: ErrForbiddenPath},
		{name: "backslash", input: `..\secret.txt`, wantErr: ErrForbiddenPath},
		{name: "absolute", input: "/etc/passwd", wantErr: ErrForbiddenPath},
		{name: "empty", input: "", wantErr: ErrForbiddenPath},
		{name: "missing", input: "missing.mp4", wantErr: ErrFileNotFound},
		{name: "directory", input: "folder", wantErr: ErrNotRegularFile},
		{name: "partial file", input: "pending.mp4.part", wantErr: ErrFileNotFound},
		{name: "jobs folder", input: constants.JobsFolderName, wantErr: ErrFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path, err := janitor.Resolve(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, filepath.Join(janitor.Root(), tt.input), path)
		})
	}
}

// TestResolveSymlinkEscape tests that symlinks pointing outside the root are refused.
func TestResolveSymlinkEscape(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	janitor := newTestJanitor(t)
	outside := filepath.Join(t.TempDir(), "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), constants.DefaultFilePermissions))
	require.NoError(t, os.Symlink(outside, filepath.Join(janitor.Root(), "link.txt")))

	_, err := janitor.Resolve("link.txt")
	require.ErrorIs(t, err, ErrForbiddenPath)
}

// TestList tests artifact listing and classification.
func TestList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	janitor := newTestJanitor(t)

	writeFile(t, janitor.Root(), "clip.mp4", 2048)
	writeFile(t, janitor.Root(), "song.mp3", 10)
	writeFile(t, janitor.Root(), "bundle.zip", 10)
	writeFile(t, janitor.Root(), "notes.bin", 10)
	writeFile(t, janitor.Root(), "partial.zip.part", 10)
	require.NoError(t, os.MkdirAll(filepath.Join(janitor.JobsDir(), "job"), constants.DefaultFolderPermissions))
	writeFile(t, filepath.Join(janitor.JobsDir(), "job"), "inflight.mp4", 10)

	files, err := janitor.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 4)

	byName := make(map[string]*FileInfo, len(files))
	for _, file := range files {
		byName[file.Name] = file
	}

	require.Contains(t, byName, "clip.mp4")
	assert.Equal(t, int64(2048), byName["clip.mp4"].Size)
	assert.Equal(t, "2.0 KiB", byName["clip.mp4"].SizeHuman)
	assert.Equal(t, model.ArtifactKindVideo, byName["clip.mp4"].Kind)
	assert.Equal(t, "video/mp4", byName["clip.mp4"].MimeType)
	assert.Equal(t, model.ArtifactKindAudio, byName["song.mp3"].Kind)
	assert.Equal(t, model.ArtifactKindArchive, byName["bundle.zip"].Kind)
	assert.Equal(t, model.ArtifactKindOther, byName["notes.bin"].Kind)
	assert.Equal(t, constants.DefaultMimeType, byName["notes.bin"].MimeType)
}

// TestDeleteIsNotIdempotent tests that a second delete reports not found.
func TestDeleteIsNotIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	janitor := newTestJanitor(t)
	writeFile(t, janitor.Root(), "clip.mp4", 100)

	freed, err := janitor.Delete(ctx, "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(100), freed)
	assert.NoFileExists(t, filepath.Join(janitor.Root(), "clip.mp4"))

	_, err = janitor.Delete(ctx, "clip.mp4")
	require.ErrorIs(t, err, ErrFileNotFound)

	_, err = janitor.Delete(ctx, "../clip.mp4")
	require.ErrorIs(t, err, ErrForbiddenPath)
}

// TestDeleteAll tests bulk deletion.
func TestDeleteAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	janitor := newTestJanitor(t)

	report, err := janitor.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Deleted)
	assert.Equal(t, int64(0), report.FreedBytes)
	assert.Empty(t, report.Failures)

	writeFile(t, janitor.Root(), "a.mp4", 100)
	writeFile(t, janitor.Root(), "b.mp3", 50)
	writeFile(t, janitor.Root(), "c.zip.part", 50)

	report, err = janitor.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deleted)
	assert.Equal(t, int64(150), report.FreedBytes)
	assert.Equal(t, "150 B", report.FreedHuman)
	assert.Empty(t, report.Failures)
	assert.FileExists(t, filepath.Join(janitor.Root(), "c.zip.part"))
}

// TestPublish tests that artifacts are moved in under free names.
func TestPublish(t *testing.T) {
	t.Parallel()

	janitor := newTestJanitor(t)
	writeFile(t, janitor.Root(), "clip.mp4", 1)

	source := func(name string) string {
		dir := t.TempDir()
		writeFile(t, dir, name, 3)

		return filepath.Join(dir, name)
	}

	tests := []struct {
		name string
		want string
	}{
		{name: "other.mp4", want: "other.mp4"},
		{name: "clip.mp4", want: "clip-1a2b3c4d.mp4"},
		{name: "clip.mp4", want: "clip-1a2b3c4d-2.mp4"},
	}

	for _, tt := range tests {
		src := source(tt.name)

		name, err := janitor.Publish(context.Background(), src, tt.name, "1a2b3c4d")
		require.NoError(t, err)
		assert.Equal(t, tt.want, name)
		assert.NoFileExists(t, src)

		info, err := os.Stat(filepath.Join(janitor.Root(), name))
		require.NoError(t, err)
		assert.EqualValues(t, 3, info.Size())
	}

	// The artifact that held the name first is untouched.
	info, err := os.Stat(filepath.Join(janitor.Root(), "clip.mp4"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.Size())
}

// TestPublishConcurrent tests that simultaneous publishers of one name never overwrite each other.
func TestPublishConcurrent(t *testing.T) {
	t.Parallel()

	const publishers = 8

	janitor := newTestJanitor(t)

	var (
		wg    sync.WaitGroup
		names = make([]string, publishers)
		errs  = make([]error, publishers)
	)

	for i := range publishers {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "song.mp3"), []byte(strconv.Itoa(i)),
			constants.DefaultFilePermissions))

		wg.Add(1)

		go func() {
			defer wg.Done()

			names[i], errs[i] = janitor.Publish(context.Background(), filepath.Join(dir, "song.mp3"), "song.mp3", "cafebabe")
		}()
	}

	wg.Wait()

	seen := make(map[string]struct{}, publishers)

	for i := range publishers {
		require.NoError(t, errs[i])

		content, err := os.ReadFile(filepath.Join(janitor.Root(), names[i]))
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(i), string(content))

		seen[names[i]] = struct{}{}
	}

	assert.Len(t, seen, publishers)

	files, err := janitor.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, publishers)
}

// TestFreeSpace tests that free space is reported on supported platforms.
func TestFreeSpace(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "freebsd" {
		t.Skip("free space is not reported on this platform")
	}

	free, err := newTestJanitor(t).FreeSpace()
	require.NoError(t, err)
	assert.Positive(t, free)
}

// TestSweepLeftovers tests the startup cleanup.
func TestSweepLeftovers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	janitor := newTestJanitor(t)

	removed, err := janitor.SweepLeftovers(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	jobDir := filepath.Join(janitor.JobsDir(), "job-1")
	require.NoError(t, os.MkdirAll(jobDir, constants.DefaultFolderPermissions))
	writeFile(t, jobDir, "inflight.mp4", 10)
	writeFile(t, janitor.Root(), "bundle.zip.part", 10)
	writeFile(t, janitor.Root(), "clip.mp4", 10)

	removed, err = janitor.SweepLeftovers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.NoDirExists(t, jobDir)
	assert.DirExists(t, janitor.JobsDir())
	assert.NoFileExists(t, filepath.Join(janitor.Root(), "bundle.zip.part"))
	assert.FileExists(t, filepath.Join(janitor.Root(), "clip.mp4"))
}
