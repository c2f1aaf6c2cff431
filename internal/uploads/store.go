package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"campusevents/internal/metrics"
)

// URLPrefix is the public path uploaded files are served under.
const URLPrefix = "/uploads/"

// ErrInvalidImage is returned for uploads whose name is not an accepted image type.
var ErrInvalidImage = errors.New("only image files are allowed")

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// Store keeps uploaded event images on local disk.
type Store struct {
	BaseDir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{BaseDir: dir}
}

// Allowed reports whether a client file name carries an accepted image extension.
func Allowed(name string) bool {
	return allowedExt[strings.ToLower(filepath.Ext(name))]
}

// Save writes r under a collision-free name derived from the client file name
// and returns the public URL.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" || !Allowed(base) {
		return "", ErrInvalidImage
	}
	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	file := uuid.NewString() + "_" + base
	f, err := os.OpenFile(filepath.Join(s.BaseDir, file), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close upload: %w", err)
	}
	return URLPrefix + file, nil
}

// Resolve maps a public upload URL to its path on disk. It refuses URLs
// outside the upload prefix and names that would escape the base dir.
func (s *Store) Resolve(url string) (string, bool) {
	if !strings.HasPrefix(url, URLPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(url, URLPrefix)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", false
	}
	return filepath.Join(s.BaseDir, name), true
}

// Remove deletes the file behind url. A missing file is not an error.
func (s *Store) Remove(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, ok := s.Resolve(url)
	if !ok {
		return fmt.Errorf("not an upload url: %q", url)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveImage disposes of an event image synchronously.
func (s *Store) RemoveImage(ctx context.Context, url string) error {
	if err := s.Remove(ctx, url); err != nil {
		metrics.ImageCleanups.WithLabelValues("failed").Inc()
		return err
	}
	metrics.ImageCleanups.WithLabelValues("ok").Inc()
	return nil
}

// Sweep deletes files no event references that were last modified before
// now-olderThan. It returns how many files were removed.
func (s *Store) Sweep(ctx context.Context, referenced []string, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	keep := make(map[string]bool, len(referenced))
	for _, u := range referenced {
		keep[strings.TrimPrefix(u, URLPrefix)] = true
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || keep[e.Name()] {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.BaseDir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
