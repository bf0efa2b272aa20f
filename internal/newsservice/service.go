// Package newsservice owns the ordered story collection: creation, lookup by
// position, headline or id, in-place updates, deletion and filtering.
//
// Every mutation builds a new collection, saves it through the storage
// provider and only then makes it visible, so a failed save leaves the
// previous state intact. A single RWMutex serialises writers.
package newsservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/gazette/internal/apperr"
	"github.com/starford/gazette/internal/models"
	"github.com/starford/gazette/internal/storage"
)

// Event kinds passed to an EventFunc.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventFunc observes successful mutations. position is the story's index
// at the time of the event (its former index for deletions).
type EventFunc func(kind string, position int, s models.Story)

// Option configures a Service.
type Option func(*Service)

// WithEvents registers fn to be called after each successful mutation.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) { s.onEvent = fn }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// Service is the story repository.
type Service struct {
	store   storage.Provider
	logger  *slog.Logger
	onEvent EventFunc
	newID   func() string

	mu      sync.RWMutex
	stories []models.Story
}

// New loads the current collection from store.
func New(ctx context.Context, store storage.Provider, opts ...Option) (*Service, error) {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory collection with what the provider holds.
// Stories stored without an id are given one; the ids are written back on
// the next mutation.
//
// The writer lock is held across the load so a mutation cannot commit
// between reading the provider and swapping the result in.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.store.Load(ctx)
	if err != nil {
		return apperr.Persistence("load stories", err)
	}
	for i := range loaded {
		if loaded[i].ID == "" {
			loaded[i].ID = s.newID()
		}
	}
	s.stories = loaded

	s.logger.Debug("stories loaded", slog.Int("count", len(loaded)))
	return nil
}

// Create validates st, appends it and returns its position.
func (s *Service) Create(ctx context.Context, st models.Story) (int, error) {
	if err := st.Validate(); err != nil {
		return -1, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st.ID = s.newID()
	next := append(slices.Clip(s.stories), st)
	if err := s.commit(ctx, next); err != nil {
		return -1, err
	}
	pos := len(next) - 1
	s.emit(EventCreated, pos, st)
	return pos, nil
}

// CreateAll validates every story, then appends them all in one save.
// Either the whole batch is stored or none of it is. It returns the
// positions and stories as stored.
func (s *Service) CreateAll(ctx context.Context, batch []models.Story) ([]int, []models.Story, error) {
	for _, st := range batch {
		if err := st.Validate(); err != nil {
			return nil, nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.stories)
	next := slices.Grow(slices.Clone(s.stories), len(batch))
	for _, st := range batch {
		st.ID = s.newID()
		next = append(next, st)
	}
	if err := s.commit(ctx, next); err != nil {
		return nil, nil, err
	}

	positions := make([]int, len(batch))
	for i := range batch {
		positions[i] = start + i
		s.emit(EventCreated, start+i, next[start+i])
	}
	return positions, slices.Clone(next[start:]), nil
}

// FindIndex returns the position of the first story whose headline equals
// headline exactly, or -1.
func (s *Service) FindIndex(headline string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findIndex(headline)
}

// FindIndexByAuthorAndHeadline is FindIndex narrowed to one author.
func (s *Service) FindIndexByAuthorAndHeadline(author, headline string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.IndexFunc(s.stories, func(st models.Story) bool {
		return st.Headline == headline && st.Author == author
	})
}

// GetByPosition returns the story at index i.
func (s *Service) GetByPosition(i int) (models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.stories) {
		return models.Story{}, apperr.ErrNotFound
	}
	return s.stories[i], nil
}

// GetByID returns the position and story carrying the stable id.
func (s *Service) GetByID(id string) (int, models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOfID(id)
	if i < 0 {
		return -1, models.Story{}, apperr.ErrNotFound
	}
	return i, s.stories[i], nil
}

// Get returns the first story with the given headline.
func (s *Service) Get(headline string) (models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.findIndex(headline)
	if i < 0 {
		return models.Story{}, apperr.ErrNotFound
	}
	return s.stories[i], nil
}

// UpdateHeadlineAt renames the story at index i.
func (s *Service) UpdateHeadlineAt(ctx context.Context, i int, headline string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.stories) {
		return apperr.ErrNotFound
	}
	return s.updateAt(ctx, i, func(st *models.Story) { st.Headline = headline })
}

// UpdateHeadline renames the first story titled old. It reports false and
// changes nothing when no such story exists.
func (s *Service) UpdateHeadline(ctx context.Context, old, headline string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(old)
	if i < 0 {
		return false, nil
	}
	return true, s.updateAt(ctx, i, func(st *models.Story) { st.Headline = headline })
}

// EditTitle is UpdateHeadline restricted to stories by author.
func (s *Service) EditTitle(ctx context.Context, author, old, headline string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.stories, func(st models.Story) bool {
		return st.Headline == old && st.Author == author
	})
	if i < 0 {
		return false, nil
	}
	return true, s.updateAt(ctx, i, func(st *models.Story) { st.Headline = headline })
}

// UpdateContent replaces only the content of the first story titled headline.
func (s *Service) UpdateContent(ctx context.Context, headline, content string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(headline)
	if i < 0 {
		return false, nil
	}
	return true, s.updateAt(ctx, i, func(st *models.Story) { st.Content = content })
}

// SetAt replaces the story at index i, or appends st when i is past the end.
// It returns the story's resulting position; created reports an append.
func (s *Service) SetAt(ctx context.Context, i int, st models.Story) (pos int, created bool, err error) {
	if i < 0 {
		return -1, false, apperr.ErrNotFound
	}
	if err := st.Validate(); err != nil {
		return -1, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clone(s.stories)
	if i < len(next) {
		if st.ID == "" {
			st.ID = next[i].ID
		}
		next[i] = st
	} else {
		st.ID = s.newID()
		next = append(next, st)
		i = len(next) - 1
		created = true
	}
	if err := s.commit(ctx, next); err != nil {
		return -1, false, err
	}
	if created {
		s.emit(EventCreated, i, st)
	} else {
		s.emit(EventUpdated, i, st)
	}
	return i, created, nil
}

// SetByID replaces the story carrying id, keeping its id. The id is
// resolved under the writer lock so concurrent deletions cannot shift the
// target. It returns the story's position.
func (s *Service) SetByID(ctx context.Context, id string, st models.Story) (int, error) {
	if err := st.Validate(); err != nil {
		return -1, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfID(id)
	if i < 0 {
		return -1, apperr.ErrNotFound
	}
	st.ID = id
	next := slices.Clone(s.stories)
	next[i] = st
	if err := s.commit(ctx, next); err != nil {
		return -1, err
	}
	s.emit(EventUpdated, i, st)
	return i, nil
}

// DeleteByID removes the story carrying id and returns it.
func (s *Service) DeleteByID(ctx context.Context, id string) (models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfID(id)
	if i < 0 {
		return models.Story{}, apperr.ErrNotFound
	}
	return s.deleteAt(ctx, i)
}

// Delete removes the first story titled headline and reports whether one existed.
func (s *Service) Delete(ctx context.Context, headline string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(headline)
	if i < 0 {
		return false, nil
	}
	if _, err := s.deleteAt(ctx, i); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAt removes the story at index i and returns it.
func (s *Service) DeleteAt(ctx context.Context, i int) (models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.stories) {
		return models.Story{}, apperr.ErrNotFound
	}
	return s.deleteAt(ctx, i)
}

// Size returns the number of stories.
func (s *Service) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stories)
}

// Has reports whether a story with exactly this headline exists.
func (s *Service) Has(headline string) bool {
	return s.FindIndex(headline) >= 0
}

// Stories returns a copy of the collection in order.
func (s *Service) Stories() []models.Story {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.stories)
}

// Match is a story together with its position in the collection.
type Match struct {
	Position int
	Story    models.Story
}

// FilterPositions is Filter that also reports each story's position, read
// from the same snapshot as the match.
func (s *Service) FilterPositions(c models.Criteria) ([]Match, error) {
	if c.Empty() {
		return nil, errNoCriteria()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Match{}
	for i, st := range s.stories {
		if c.Matches(st) {
			out = append(out, Match{Position: i, Story: st})
		}
	}
	return out, nil
}

// Positioned returns every story with its position.
func (s *Service) Positioned() []Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Match, len(s.stories))
	for i, st := range s.stories {
		out[i] = Match{Position: i, Story: st}
	}
	return out
}

// Filter returns, in original order, the stories matching every criterion
// that is set. At least one criterion is required.
func (s *Service) Filter(c models.Criteria) ([]models.Story, error) {
	if c.Empty() {
		return nil, errNoCriteria()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Story{}
	for _, st := range s.stories {
		if c.Matches(st) {
			out = append(out, st)
		}
	}
	return out, nil
}

func errNoCriteria() error {
	return &apperr.ValidationError{
		Message: "at least one of headline, dateFrom, dateTo, author must be specified",
	}
}

func (s *Service) findIndex(headline string) int {
	return slices.IndexFunc(s.stories, func(st models.Story) bool { return st.Headline == headline })
}

func (s *Service) indexOfID(id string) int {
	return slices.IndexFunc(s.stories, func(st models.Story) bool { return st.ID == id })
}

// updateAt applies fn to a copy of story i and commits. Caller holds mu.
func (s *Service) updateAt(ctx context.Context, i int, fn func(*models.Story)) error {
	next := slices.Clone(s.stories)
	fn(&next[i])
	if err := s.commit(ctx, next); err != nil {
		return err
	}
	s.emit(EventUpdated, i, next[i])
	return nil
}

// deleteAt removes story i and commits. Caller holds mu.
func (s *Service) deleteAt(ctx context.Context, i int) (models.Story, error) {
	removed := s.stories[i]
	next := slices.Delete(slices.Clone(s.stories), i, i+1)
	if err := s.commit(ctx, next); err != nil {
		return models.Story{}, err
	}
	s.emit(EventDeleted, i, removed)
	return removed, nil
}

// commit persists next and swaps it in. Caller holds mu.
func (s *Service) commit(ctx context.Context, next []models.Story) error {
	if err := s.store.Save(ctx, next); err != nil {
		s.logger.Error("persist stories failed", slog.String("error", err.Error()))
		return apperr.Persistence(fmt.Sprintf("save %d stories", len(next)), err)
	}
	s.stories = next
	return nil
}

func (s *Service) emit(kind string, pos int, st models.Story) {
	if s.onEvent != nil {
		s.onEvent(kind, pos, st)
	}
}
