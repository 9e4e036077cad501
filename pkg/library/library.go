// Package library stores exported images.
package library

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/menta2k/watermark/internal/utils"
)

// Library receives finished images. Save returns where the image went.
type Library interface {
	Save(ctx context.Context, data []byte, ext string) (string, error)
}

// DirLibrary writes images into a directory
type DirLibrary struct {
	dir    string
	prefix string
	suffix string
}

// NewDirLibrary creates a library rooted at dir
func NewDirLibrary(dir string) *DirLibrary {
	return &DirLibrary{dir: dir}
}

// WithAffixes sets the file name prefix and suffix
func (l *DirLibrary) WithAffixes(prefix, suffix string) *DirLibrary {
	l.prefix = prefix
	l.suffix = suffix
	return l
}

// Dir returns the library directory
func (l *DirLibrary) Dir() string {
	return l.dir
}

// Save writes data to a new uniquely named file
func (l *DirLibrary) Save(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := utils.EnsureDir(l.dir); err != nil {
		return "", fmt.Errorf("failed to create library directory: %w", err)
	}

	name := "watermark-" + uuid.NewString()
	path := utils.GenerateOutputFilename(name, l.dir, l.prefix, l.suffix, normalizeExt(ext))
	if err := utils.WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// SaveAs writes data next to the library using the given source name
// instead of a random one.
func (l *DirLibrary) SaveAs(ctx context.Context, sourceName string, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := utils.EnsureDir(l.dir); err != nil {
		return "", fmt.Errorf("failed to create library directory: %w", err)
	}

	path := utils.GenerateOutputFilename(filepath.Base(sourceName), l.dir, l.prefix, l.suffix, normalizeExt(ext))
	if err := utils.WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" || ext == "jpeg" {
		return "jpg"
	}
	return ext
}

// Item is one image held by a Memory library.
type Item struct {
	Name string
	Data []byte
}

// Memory keeps saved images in memory
type Memory struct {
	mu    sync.Mutex
	items []Item
}

// NewMemory creates an empty in-memory library
func NewMemory() *Memory {
	return &Memory{}
}

// Save stores a copy of data
func (m *Memory) Save(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	name := fmt.Sprintf("memory-%d.%s", len(m.items)+1, normalizeExt(ext))
	m.items = append(m.items, Item{Name: name, Data: append([]byte(nil), data...)})
	return name, nil
}

// Items returns the saved images in order
func (m *Memory) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.items...)
}
