package storage

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/gazette/internal/models"
)

// JSONFile implements Provider backed by a single tab-indented JSON array.
type JSONFile struct {
	path   string // absolute
	logger *slog.Logger

	mu      sync.Mutex
	wrote   bool
	lastSum [sha256.Size]byte // digest of the bytes this process last wrote
}

// NewJSONFile opens the store at path, creating an empty array file
// (and its directory) when none exists yet.
func NewJSONFile(path string, logger *slog.Logger) (*JSONFile, error) {
	if path == "" {
		return nil, errors.New("storage: json path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &JSONFile{path: abs, logger: logger}

	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := f.Save(context.Background(), nil); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("storage: stat %s: %w", abs, err)
	case info.IsDir():
		return nil, fmt.Errorf("storage: path is a directory: %s", abs)
	}
	return f, nil
}

// Path returns the absolute location of the backing file.
func (f *JSONFile) Path() string { return f.path }

// Load reads the whole file. Malformed JSON is logged and treated as no data.
func (f *JSONFile) Load(_ context.Context) ([]models.Story, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.Story{}, nil
		}
		return nil, fmt.Errorf("storage: read %s: %w", f.path, err)
	}

	var stories []models.Story
	if err := json.Unmarshal(data, &stories); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			f.logger.Warn("storage: ignoring malformed story file",
				slog.String("path", f.path),
				slog.String("error", err.Error()))
			return []models.Story{}, nil
		}
		return nil, fmt.Errorf("storage: decode %s: %w", f.path, err)
	}
	if stories == nil {
		stories = []models.Story{}
	}
	return stories, nil
}

// Save serialises stories and atomically replaces the file: tmp file → fsync → rename.
func (f *JSONFile) Save(_ context.Context, stories []models.Story) error {
	if stories == nil {
		stories = []models.Story{}
	}
	data, err := json.MarshalIndent(stories, "", "\t")
	if err != nil {
		return fmt.Errorf("storage: encode: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeAtomic(f.path, data); err != nil {
		return err
	}
	f.lastSum = sha256.Sum256(data)
	f.wrote = true
	return nil
}

// OwnWrite reports whether the file on disk still holds exactly what this
// process wrote last. The watcher uses it to skip its own writes.
func (f *JSONFile) OwnWrite() bool {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wrote && f.lastSum == sha256.Sum256(data)
}

// Close is a no-op; the file is not held open between calls.
func (f *JSONFile) Close() error { return nil }

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".gazette-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
