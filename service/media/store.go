package media

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"RentChat/tools/errs"
	"RentChat/tools/ids"

	"github.com/pkg/errors"
)

// ObjectStore is the external binary store collaborator. Only the resulting
// URL travels through the chat core; swap in an S3/OSS-backed
// implementation for production. Remove exists so a binary whose message
// never got persisted does not linger in the store.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (url string, err error)
	Remove(ctx context.Context, key string) error
}

// Kind classifies an upload by content type. Only images and videos are
// accepted on the attach path.
func Kind(contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return "image", nil
	case strings.HasPrefix(ct, "video/"):
		return "video", nil
	default:
		return "", errs.ErrValidation.WithDetail("unsupported media type " + contentType)
	}
}

// ObjectKey builds a collision-free storage key preserving the extension.
func ObjectKey(contentType string) string {
	ext := ""
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return ids.GenerateString() + ext
}

// LocalStore writes binaries under Dir and serves them from BaseURL.
// Dev/test stand-in for the production object store.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "media dir")
	}
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, key)
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create object")
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(path)
		return "", errors.Wrap(err, "write object")
	}
	// a timed-out upload must not leave a half-written object behind
	if err := ctx.Err(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return s.BaseURL + "/" + key, nil
}

func (s *LocalStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.Dir, key))
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "remove object")
}
