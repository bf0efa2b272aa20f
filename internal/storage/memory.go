package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/starford/gazette/internal/models"
)

// Memory keeps the collection in process. SaveErr, when set, is returned
// from Save without storing anything; tests use it to simulate failures.
type Memory struct {
	mu      sync.Mutex
	stories []models.Story
	saves   int

	SaveErr error
}

// NewMemory returns an empty in-memory provider.
func NewMemory(seed ...models.Story) *Memory {
	return &Memory{stories: slices.Clone(seed)}
}

func (m *Memory) Load(_ context.Context) ([]models.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.stories)
	if out == nil {
		out = []models.Story{}
	}
	return out, nil
}

func (m *Memory) Save(_ context.Context, stories []models.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.stories = slices.Clone(stories)
	m.saves++
	return nil
}

// Saves counts successful Save calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
