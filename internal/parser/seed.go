package parser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/gazette/internal/models"
)

// LoadDir reads every *.md file in dir in lexical order and returns the
// stories they describe. Files that do not yield a valid story are logged
// and skipped.
func LoadDir(dir string, logger *slog.Logger) ([]models.Story, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("parser: read seed dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var out []models.Story
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		path := filepath.Join(dir, e.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("parser: read %s: %w", path, err)
		}
		res, err := Parse(data)
		if err != nil {
			logger.Warn("seed: parse failed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		st, err := res.Story()
		if err != nil {
			logger.Warn("seed: skipping file", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		out = append(out, st)
	}
	return out, nil
}
