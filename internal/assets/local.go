package assets

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore keeps assets under Root on the local filesystem and serves them
// below BaseURL.
type LocalStore struct {
	Root    string
	BaseURL string
	// Dir is the sub-directory new uploads go to. Defaults to "uploads".
	Dir string
}

// NewLocalStore returns a LocalStore rooted at root.
func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{Root: root, BaseURL: strings.TrimRight(baseURL, "/"), Dir: "uploads"}
}

func (s *LocalStore) dir() string {
	if s.Dir == "" {
		return "uploads"
	}
	return s.Dir
}

// resolve maps an id to a path inside Root, rejecting traversal.
func (s *LocalStore) resolve(id string) (string, error) {
	clean := path.Clean("/" + id)[1:]
	if clean == "" || clean != id {
		return "", ErrInvalidID
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean)), nil
}

// Put writes r to Root/<Dir>/<uuid><ext>.
func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := path.Join(s.dir(), uuid.NewString()+strings.ToLower(path.Ext(name)))
	p, err := s.resolve(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(p)
		return "", err
	}
	return id, nil
}

// Delete removes the file behind id.
func (s *LocalStore) Delete(_ context.Context, id string) error {
	p, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// URLOf joins BaseURL and id.
func (s *LocalStore) URLOf(id string) string {
	if id == "" {
		return ""
	}
	return s.BaseURL + "/" + strings.TrimLeft(id, "/")
}
