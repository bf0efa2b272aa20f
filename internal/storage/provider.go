// Package storage persists the story collection as a whole.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/gazette/internal/models"
)

// Drivers understood by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Provider loads and saves the full ordered story collection.
// Save always replaces everything previously stored.
type Provider interface {
	// Load returns the stored stories in order. Missing storage yields an empty slice.
	Load(ctx context.Context) ([]models.Story, error)
	// Save overwrites the stored collection with stories.
	Save(ctx context.Context, stories []models.Story) error
	// Close releases any underlying resources.
	Close() error
}

// Options selects and configures a provider.
type Options struct {
	Driver string
	Path   string
	// Reset discards previously stored stories on open.
	Reset bool
}

// Open builds the provider named by opts.Driver.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch opts.Driver {
	case DriverJSON, "":
		p, err = NewJSONFile(opts.Path, logger)
	case DriverSQLite:
		p, err = OpenSQLite(opts.Path)
	case DriverMemory:
		p = NewMemory()
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if opts.Reset {
		if err := p.Save(ctx, nil); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("storage: reset: %w", err)
		}
	}
	return p, nil
}
