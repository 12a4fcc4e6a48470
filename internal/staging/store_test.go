package staging

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteAndList(t *testing.T) {
	fs := memfs.New()
	store := New(fs)

	n, err := store.Write("b.png", strings.NewReader("bbbb"))
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	_, err = store.Write("a.png", strings.NewReader("aa"))
	require.NoError(t, err)

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.png", files[0].Name)
	assert.EqualValues(t, 2, files[0].Size)
	assert.Equal(t, "b.png", files[1].Name)

	temps, err := store.TempFiles()
	require.NoError(t, err)
	assert.Empty(t, temps, "successful writes must not leave temp files behind")

	data, err := store.ReadAll("b.png")
	require.NoError(t, err)
	assert.Equal(t, "bbbb", string(data))
}

func TestStore_WriteRefusesOverwrite(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "a.png", []byte("original"), 0o644))

	store := New(fs)

	_, err := store.Write("a.png", strings.NewReader("replacement"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExists))

	data, err := store.ReadAll("a.png")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestStore_WriteFailureLeavesNothing(t *testing.T) {
	store := New(memfs.New())

	body := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errors.New("connection reset")))

	_, err := store.Write("a.png", body)
	require.Error(t, err)

	exists, err := store.Exists("a.png")
	require.NoError(t, err)
	assert.False(t, exists, "a failed write must not appear under its final name")

	temps, err := store.TempFiles()
	require.NoError(t, err)
	assert.Empty(t, temps)
}

func TestStore_ListSkipsHiddenAndDirectories(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "a.png", []byte("a"), 0o644))
	require.NoError(t, util.WriteFile(fs, ".staging-b.png.123", []byte("b"), 0o600))
	require.NoError(t, fs.MkdirAll("nested", 0o755))

	store := New(fs)

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.png", files[0].Name)

	temps, err := store.TempFiles()
	require.NoError(t, err)
	require.Len(t, temps, 1)
	assert.Equal(t, ".staging-b.png.123", temps[0].Name)
}

func TestStore_ListEmpty(t *testing.T) {
	files, err := New(memfs.New()).List()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestStore_Remove(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "a.png", []byte("a"), 0o644))

	store := New(fs)
	require.NoError(t, store.Remove("a.png"))

	exists, err := store.Exists("a.png")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Error(t, store.Remove("a.png"))
}

func TestOpen_CreatesDirectoryOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")

	store, err := Open(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = store.Write("a.png", strings.NewReader("png"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "a.png"), files[0].Path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the final file should remain on disk")
}
