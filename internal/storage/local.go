package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/config"
)

// ErrInvalidKey is returned for keys that escape the storage root
var ErrInvalidKey = errors.New("invalid storage key")

// LocalStore writes blobs under a root directory and serves them below a public base URL
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(cfg config.StorageConfig) (*LocalStore, error) {
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve storage root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create storage root")
	}

	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = "/files"
	}

	return &LocalStore{root: root, baseURL: baseURL}, nil
}

// Root returns the directory blobs are written to
func (s *LocalStore) Root() string {
	return s.root
}

// Put writes data under key and returns its public URL
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full, clean, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create blob directory")
	}

	// Readers never see a partial blob
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create blob file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to write blob")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to close blob")
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to store blob")
	}

	log.Debug().Str("key", clean).Int("size", len(data)).Msg("stored blob")
	return s.baseURL + "/" + clean, nil
}

// Delete removes the blob under key; a missing blob is not an error
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	full, _, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete blob")
	}
	return nil
}

func (s *LocalStore) resolve(key string) (string, string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." || strings.Contains(key, "..") {
		return "", "", errors.Wrapf(ErrInvalidKey, "key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), clean, nil
}

// SafeName reduces an uploaded filename to a single path segment
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == 0:
			return '_'
		case r < 0x20:
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
