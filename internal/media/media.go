package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/teris-io/shortid"
)

const (
	URLPrefix      = "/uploads/"
	DefaultMaxSize = 5 << 20
)

// allowedTypes are the raster formats served back to browsers. Vector
// formats such as SVG can carry scripts and are refused.
var allowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var (
	ErrNotImage = errors.New("file is not an image")
	ErrTooLarge = errors.New("file is too large")
)

// Store keeps uploaded images in a local directory and serves them under
// URLPrefix.
type Store struct {
	dir     string
	maxSize int64
}

func NewStore(dir string, maxSize int64) (*Store, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &Store{dir: dir, maxSize: maxSize}, nil
}

func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// SaveImage writes the content of r to disk when it sniffs as one of the
// allowed image types and returns the public path it is served under.
func (s *Store) SaveImage(r io.Reader) (string, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if n > s.maxSize {
		return "", ErrTooLarge
	}

	mtype := mimetype.Detect(buf.Bytes())
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mtype.String())
	}

	id, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate file name: %w", err)
	}

	name := id + mtype.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, name), buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return URLPrefix + name, nil
}

// IsLocal reports whether path refers to a file kept by the store, as
// opposed to a remote image URL.
func IsLocal(path string) bool {
	return strings.HasPrefix(path, URLPrefix) && len(path) > len(URLPrefix)
}

// Delete removes a file previously returned by SaveImage. Remote URLs and
// files that no longer exist are ignored.
func (s *Store) Delete(path string) error {
	if !IsLocal(path) {
		return nil
	}

	name := filepath.Base(strings.TrimPrefix(path, URLPrefix))
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}

	return nil
}

func (s *Store) Handler() http.Handler {
	files := http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
