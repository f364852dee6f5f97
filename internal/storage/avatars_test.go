package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pondside/internal/utils"
)

func TestAvatarSaveAndOpen(t *testing.T) {
	store, err := NewAvatarStore(t.TempDir())
	require.NoError(t, err)

	content := "fake png bytes"
	ref, err := store.Save("Photo.PNG", int64(len(content)), strings.NewReader(content))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".png"), "extension should be normalized: %s", ref)

	f, err := store.Open(ref)
	require.NoError(t, err)
	defer f.Close()

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestAvatarRejectsBadExtension(t *testing.T) {
	store, err := NewAvatarStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("payload.exe", 4, strings.NewReader("boom"))
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidInput))
}

func TestAvatarRejectsOversizedUpload(t *testing.T) {
	store, err := NewAvatarStore(t.TempDir())
	require.NoError(t, err)

	// Declared size over the cap fails before any bytes are read.
	_, err = store.Save("big.jpg", MaxAvatarSize+1, strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidInput))
}

func TestAvatarOpenRejectsPathTraversal(t *testing.T) {
	store, err := NewAvatarStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("../../etc/passwd")
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidInput))
}
