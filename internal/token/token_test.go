package token

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
)

func TestComputeFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	mtime := time.Unix(1700000000, 0)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	tok, err := Compute(path)
	require.NoError(t, err)
	assert.Equal(t, "1700000000:3", tok)
}

func TestComputeChangesWithMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))
	mtime := time.Unix(1700000000, 0)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	before, err := Compute(path)
	require.NoError(t, err)

	// mtime change alone produces a different token.
	later := time.Unix(1700000100, 0)
	require.NoError(t, os.Chtimes(path, later, later))
	afterMtime, err := Compute(path)
	require.NoError(t, err)
	assert.NotEqual(t, before, afterMtime)

	// Size change produces a different token.
	require.NoError(t, os.WriteFile(path, []byte("abcde"), 0o644))
	require.NoError(t, os.Chtimes(path, later, later))
	afterSize, err := Compute(path)
	require.NoError(t, err)
	assert.NotEqual(t, afterMtime, afterSize)
	assert.Equal(t, "1700000100:5", afterSize)
}

func TestComputeContentOnlyChangeIsInvisible(t *testing.T) {
	// Same size, same mtime, different bytes: the documented miss.
	path := filepath.Join(t.TempDir(), "x.txt")
	mtime := time.Unix(1700000000, 0)

	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	before, err := Compute(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("xyz"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	after, err := Compute(path)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestComputeMissingFile(t *testing.T) {
	_, err := Compute(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.Is(err, syncerr.ErrFileNotFound))
}

func TestFromStatRejectsPreEpochMtime(t *testing.T) {
	_, err := FromStat("/a/x", -1, 10)
	assert.True(t, errors.Is(err, syncerr.ErrInvalidPath))
}
