package mask

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/matzehuels/geomap/pkg/errors"
)

// Dir is the directory under a store root that holds one subdirectory per key.
const Dir = "images"

// Ext is the mask file extension.
const Ext = ".png"

// Store persists masks.
type Store interface {
	// Save writes m and returns where it was stored.
	Save(ctx context.Context, m *Mask) (string, error)
}

// DirStore writes masks as PNG files under root.
type DirStore struct {
	root string
}

// NewDirStore returns a store rooted at root. Directories are created on the
// first save for each key.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Root returns the store root.
func (s *DirStore) Root() string { return s.root }

// Path returns the file path for a mask with the given key and centroid.
func (s *DirStore) Path(key string, lat, lon float64) (string, error) {
	if err := errors.ValidateCategoryName(key); err != nil {
		return "", err
	}
	name := formatCoord(lon) + ";" + formatCoord(lat) + Ext
	return filepath.Join(s.root, Dir, key, name), nil
}

// Save encodes m as PNG at [DirStore.Path]. An existing file is replaced.
func (s *DirStore) Save(ctx context.Context, m *Mask) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.Path(m.Key, m.Lat, m.Lon)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "create mask directory")
	}

	var buf bytes.Buffer
	if err := m.Bitmap.EncodePNG(&buf); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "write mask %s", path)
	}
	return path, nil
}

// Entry identifies a stored mask file.
type Entry struct {
	Path string
	Key  string
	Lat  float64
	Lon  float64
}

// Walk calls fn for every mask file under s, in lexical order. Files whose
// names do not parse as <lon>;<lat>.png are skipped.
func (s *DirStore) Walk(ctx context.Context, fn func(Entry) error) error {
	base := filepath.Join(s.root, Dir)
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		lat, lon, ok := ParseFilename(d.Name())
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		key := filepath.Dir(rel)
		if key == "." || strings.Contains(key, string(filepath.Separator)) {
			return nil
		}
		return fn(Entry{Path: path, Key: key, Lat: lat, Lon: lon})
	})
	if os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeFileNotFound, err, "no masks under %s", s.root)
	}
	return err
}

// ParseFilename extracts the centroid from a mask file name.
func ParseFilename(name string) (lat, lon float64, ok bool) {
	stem, found := strings.CutSuffix(name, Ext)
	if !found {
		return 0, 0, false
	}
	lonText, latText, found := strings.Cut(stem, ";")
	if !found {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(lonText, 64)
	if err != nil {
		return 0, 0, false
	}
	lat, err = strconv.ParseFloat(latText, 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MemoryStore keeps masks in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	masks []*Mask
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, m *Mask) (string, error) {
	if err := errors.ValidateCategoryName(m.Key); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masks = append(s.masks, m)
	return m.String(), nil
}

// Masks returns the saved masks in save order.
func (s *MemoryStore) Masks() []*Mask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Mask(nil), s.masks...)
}
