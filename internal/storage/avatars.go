// Package storage implements the avatar blob store: files land under a
// content-unique generated name and are referenced by that name only.
package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"pondside/internal/utils"
)

// MaxAvatarSize caps uploads at 5 MiB.
const MaxAvatarSize = 5 * 1024 * 1024

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// AvatarStore validates and persists avatar uploads, returning the
// reference string recorded on the user.
type AvatarStore struct {
	dir string
}

func NewAvatarStore(dir string) (*AvatarStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "Failed to create avatar directory", err)
	}
	return &AvatarStore{dir: dir}, nil
}

// Save writes the upload under a generated unique name. The original
// filename contributes only its extension.
func (s *AvatarStore) Save(filename string, size int64, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", utils.NewAppError(utils.ErrInvalidInput, "Avatar must be jpg, jpeg, png or gif", nil)
	}
	if size > MaxAvatarSize {
		return "", utils.NewAppError(utils.ErrInvalidInput, "Avatar exceeds the 5 MiB limit", nil)
	}

	ref := uuid.New().String() + ext
	f, err := os.Create(filepath.Join(s.dir, ref))
	if err != nil {
		return "", utils.NewAppError(utils.ErrDatabase, "Failed to store avatar", err)
	}
	defer f.Close()

	// The size reported by the multipart header is advisory; enforce
	// the cap on the actual bytes as well.
	written, err := io.Copy(f, io.LimitReader(r, MaxAvatarSize+1))
	if err != nil {
		os.Remove(filepath.Join(s.dir, ref))
		return "", utils.NewAppError(utils.ErrDatabase, "Failed to store avatar", err)
	}
	if written > MaxAvatarSize {
		os.Remove(filepath.Join(s.dir, ref))
		return "", utils.NewAppError(utils.ErrInvalidInput, "Avatar exceeds the 5 MiB limit", nil)
	}

	return ref, nil
}

// Open returns the stored file for serving.
func (s *AvatarStore) Open(ref string) (*os.File, error) {
	// References are generated names; reject anything path-like.
	if ref != filepath.Base(ref) || strings.Contains(ref, "..") {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "Invalid avatar reference", nil)
	}
	f, err := os.Open(filepath.Join(s.dir, ref))
	if err != nil {
		return nil, utils.NewAppError(utils.ErrNotFound, "Avatar not found: "+ref, err)
	}
	return f, nil
}
