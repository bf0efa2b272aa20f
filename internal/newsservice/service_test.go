package newsservice_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/gazette/internal/apperr"
	"github.com/starford/gazette/internal/models"
	"github.com/starford/gazette/internal/newsservice"
	"github.com/starford/gazette/internal/storage"
	tu "github.com/starford/gazette/internal/testutil"
)

type event struct {
	kind     string
	position int
	headline string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) record(kind string, pos int, s models.Story) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind, pos, s.Headline})
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func sequentialIDs() newsservice.Option {
	n := 0
	return newsservice.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func setup(t *testing.T, stories ...models.Story) (*newsservice.Service, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	svc, err := newsservice.New(context.Background(), mem, sequentialIDs())
	require.NoError(t, err)
	for _, s := range stories {
		_, err := svc.Create(context.Background(), s)
		require.NoError(t, err)
	}
	return svc, mem
}

func headlines(stories []models.Story) []string {
	out := make([]string, len(stories))
	for i, s := range stories {
		out[i] = s.Headline
	}
	return out
}

func TestCreate(t *testing.T) {
	svc, mem := setup(t)
	ctx := context.Background()

	pos, err := svc.Create(ctx, tu.Wildfires())
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
	assert.Equal(t, 1, svc.Size())
	assert.Equal(t, 1, mem.Saves())

	got, err := svc.GetByPosition(0)
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "Li Zhou", got.Author)

	pos, err = svc.Create(ctx, models.Story{Headline: "Second"})
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestCreateRequiresHeadline(t *testing.T) {
	svc, mem := setup(t)

	_, err := svc.Create(context.Background(), models.Story{Author: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "headline", ve.Field)
	assert.Equal(t, 0, svc.Size())
	assert.Equal(t, 0, mem.Saves())
}

func TestCreateAllowsDuplicateHeadlines(t *testing.T) {
	svc, _ := setup(t, tu.Wildfires(), tu.Wildfires())
	assert.Equal(t, 2, svc.Size())
	assert.Equal(t, 0, svc.FindIndex("Wildfires kill eight"))
}

func TestUpdateHeadline(t *testing.T) {
	svc, _ := setup(t, tu.Wildfires())

	ok, err := svc.UpdateHeadline(context.Background(), "Wildfires kill eight", "Wildfires kill ten")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, svc.Has("Wildfires kill ten"))
	assert.False(t, svc.Has("Wildfires kill eight"))
}

func TestUpdateHeadlineMissingIsNoop(t *testing.T) {
	svc, mem := setup(t, tu.Wildfires())
	saves := mem.Saves()

	ok, err := svc.UpdateHeadline(context.Background(), "non-existing headline", "new headline")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, svc.Has("new headline"))
	assert.False(t, svc.Has("non-existing headline"))
	assert.Equal(t, saves, mem.Saves())
}

func TestUpdateHeadlineAt(t *testing.T) {
	svc, _ := setup(t, tu.FirstSix()...)
	ctx := context.Background()

	require.NoError(t, svc.UpdateHeadlineAt(ctx, 2, "renamed"))
	got, _ := svc.GetByPosition(2)
	assert.Equal(t, "renamed", got.Headline)

	for _, i := range []int{-1, 6, 100} {
		err := svc.UpdateHeadlineAt(ctx, i, "x")
		assert.ErrorIs(t, err, apperr.ErrNotFound, "index %d", i)
	}
}

func TestEditTitleMatchesAuthor(t *testing.T) {
	svc, _ := setup(t, tu.Wildfires())
	ctx := context.Background()

	ok, err := svc.EditTitle(ctx, "Someone Else", "Wildfires kill eight", "hijacked")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, svc.Has("Wildfires kill eight"))

	ok, err = svc.EditTitle(ctx, "Li Zhou", "Wildfires kill eight", "Wildfires kill ten")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, svc.FindIndexByAuthorAndHeadline("Li Zhou", "Wildfires kill ten"))
	assert.Equal(t, -1, svc.FindIndexByAuthorAndHeadline("Someone Else", "Wildfires kill ten"))
}

func TestUpdateContent(t *testing.T) {
	svc, _ := setup(t, tu.Wildfires())
	const content = "Unprecedented fire conditions burn more than 900,000 acres"

	ok, err := svc.UpdateContent(context.Background(), "Wildfires kill eight", content)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := svc.Get("Wildfires kill eight")
	require.NoError(t, err)
	assert.Equal(t, content, got.Content)
	assert.Equal(t, "Li Zhou", got.Author)
	assert.Equal(t, tu.Day(2020, time.September, 10), got.Date)

	ok, err = svc.UpdateContent(context.Background(), "missing", content)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMissing(t *testing.T) {
	svc, _ := setup(t, tu.Wildfires())

	_, err := svc.Get("nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.GetByPosition(1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.GetByPosition(-1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, _, err = svc.GetByID("id-99")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetByID(t *testing.T) {
	svc, _ := setup(t, tu.FirstSix()...)

	pos, st, err := svc.GetByID("id-4")
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
	assert.Equal(t, tu.Headline4, st.Headline)
}

func TestSetAt(t *testing.T) {
	svc, _ := setup(t, tu.FirstSix()...)
	ctx := context.Background()

	pos, created, err := svc.SetAt(ctx, 0, models.Story{Headline: "replaced", Author: "me"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 0, pos)
	got, _ := svc.GetByPosition(0)
	assert.Equal(t, "replaced", got.Headline)
	assert.Equal(t, "id-1", got.ID, "replacement keeps the slot's id")

	pos, created, err = svc.SetAt(ctx, 42, models.Story{Headline: "appended"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 6, pos)
	assert.Equal(t, 7, svc.Size())
	got, _ = svc.GetByPosition(6)
	assert.Equal(t, "appended", got.Headline)

	_, _, err = svc.SetAt(ctx, -1, models.Story{Headline: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, _, err = svc.SetAt(ctx, 1, models.Story{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDelete(t *testing.T) {
	svc, _ := setup(t, tu.Wildfires())
	ctx := context.Background()

	ok, err := svc.Delete(ctx, "Wildfires kill eight")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, svc.Has("Wildfires kill eight"))
	assert.Equal(t, 0, svc.Size())

	ok, err = svc.Delete(ctx, "Wildfires kill eight")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRemovesOnlyFirstOfSharedHeadline(t *testing.T) {
	svc, _ := setup(t, tu.Wildfires(), tu.Wildfires())

	ok, err := svc.Delete(context.Background(), "Wildfires kill eight")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, svc.Size())

	rest := svc.Stories()
	require.Len(t, rest, 1)
	assert.Equal(t, "id-2", rest[0].ID, "the second story survives")
}

func TestDeleteByIDAfterEarlierDelete(t *testing.T) {
	svc, _ := setup(t, tu.FirstSix()...)
	ctx := context.Background()

	_, err := svc.DeleteAt(ctx, 0)
	require.NoError(t, err)

	removed, err := svc.DeleteByID(ctx, "id-3")
	require.NoError(t, err)
	assert.Equal(t, tu.Headline3, removed.Headline)

	want := []string{tu.Headline2, tu.Headline4, tu.Headline5, tu.Headline6}
	if diff := cmp.Diff(want, headlines(svc.Stories())); diff != "" {
		t.Errorf("stories after delete by id (-want +got):\n%s", diff)
	}

	_, err = svc.DeleteByID(ctx, "id-3")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetByID(t *testing.T) {
	svc, _ := setup(t, tu.FirstSix()...)
	ctx := context.Background()

	_, err := svc.DeleteAt(ctx, 0)
	require.NoError(t, err)

	pos, err := svc.SetByID(ctx, "id-4", models.Story{Headline: "replaced", ID: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
	got, _ := svc.GetByPosition(2)
	assert.Equal(t, "replaced", got.Headline)
	assert.Equal(t, "id-4", got.ID)

	_, err = svc.SetByID(ctx, "missing", models.Story{Headline: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.SetByID(ctx, "id-4", models.Story{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateAll(t *testing.T) {
	svc, mem := setup(t, tu.Wildfires())
	ctx := context.Background()
	saves := mem.Saves()

	positions, created, err := svc.CreateAll(ctx, []models.Story{{Headline: "one"}, {Headline: "two"}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, positions)
	assert.Equal(t, []string{"one", "two"}, headlines(created))
	assert.Equal(t, "id-2", created[0].ID)
	assert.Equal(t, saves+1, mem.Saves(), "the batch is one save")

	_, _, err = svc.CreateAll(ctx, []models.Story{{Headline: "ok"}, {}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 3, svc.Size())

	mem.SaveErr = errors.New("disk full")
	_, _, err = svc.CreateAll(ctx, []models.Story{{Headline: "a"}, {Headline: "b"}})
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.Equal(t, 3, svc.Size(), "a failed save stores none of the batch")
}

func TestFilterPositions(t *testing.T) {
	svc, _ := setup(t, tu.FirstSix()...)

	got, err := svc.FilterPositions(models.Criteria{Headline: "A"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Position)
	assert.Equal(t, tu.Headline1, got[0].Story.Headline)
	assert.Equal(t, 3, got[1].Position)

	_, err = svc.FilterPositions(models.Criteria{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	all := svc.Positioned()
	require.Len(t, all, 6)
	assert.Equal(t, 5, all[5].Position)
}

func TestDeleteAtShiftsLaterStories(t *testing.T) {
	svc, _ := setup(t, tu.FirstSix()...)

	removed, err := svc.DeleteAt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, tu.Headline2, removed.Headline)

	want := []string{tu.Headline1, tu.Headline3, tu.Headline4, tu.Headline5, tu.Headline6}
	if diff := cmp.Diff(want, headlines(svc.Stories())); diff != "" {
		t.Errorf("stories after delete (-want +got):\n%s", diff)
	}

	_, err = svc.DeleteAt(context.Background(), 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStoriesReturnsCopy(t *testing.T) {
	svc, _ := setup(t, tu.Wildfires())
	list := svc.Stories()
	list[0].Headline = "mutated"
	assert.True(t, svc.Has("Wildfires kill eight"))
}

func TestFilter(t *testing.T) {
	svc, _ := setup(t, tu.AllTen()...)

	tests := []struct {
		name     string
		criteria models.Criteria
		want     []string
	}{
		{
			name:     "headline substring is case sensitive",
			criteria: models.Criteria{Headline: "A"},
			want:     []string{tu.Headline1, tu.Headline4, tu.Headline9},
		},
		{
			name:     "date from",
			criteria: models.Criteria{DateFrom: tu.Day(2000, time.May, 10)},
			want:     []string{tu.Headline1, tu.Headline2, tu.Headline3, tu.Headline9},
		},
		{
			name:     "date range",
			criteria: models.Criteria{DateFrom: tu.Day(1992, time.March, 24), DateTo: tu.Day(2002, time.March, 12)},
			want:     []string{tu.Headline4, tu.Headline5, tu.Headline10},
		},
		{
			name:     "bounds are inclusive",
			criteria: models.Criteria{DateFrom: tu.Day(1983, time.July, 2), DateTo: tu.Day(1983, time.July, 2)},
			want:     []string{tu.Headline6},
		},
		{
			name:     "author is exact",
			criteria: models.Criteria{Author: "Li Zhou"},
			want:     []string{tu.Headline1},
		},
		{
			name:     "headline and author",
			criteria: models.Criteria{Headline: "in", Author: "David Goodman"},
			want:     []string{tu.Headline5, tu.Headline9},
		},
		{
			name: "all four with no match",
			criteria: models.Criteria{
				Headline: "r", DateFrom: tu.Day(2010, time.December, 9), DateTo: tu.Day(2013, time.February, 7),
				Author: "Caitlin McFall",
			},
			want: []string{},
		},
		{
			name: "all four",
			criteria: models.Criteria{
				Headline: "g", DateFrom: tu.Day(2017, time.September, 29), DateTo: tu.Day(2020, time.December, 9),
				Author: "Caitlin McFall",
			},
			want: []string{tu.Headline2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Filter(tt.criteria)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, headlines(got)); diff != "" {
				t.Errorf("Filter (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterFirstSix(t *testing.T) {
	svc, _ := setup(t, tu.FirstSix()...)

	got, err := svc.Filter(models.Criteria{Headline: "A"})
	require.NoError(t, err)
	assert.Equal(t, []string{tu.Headline1, tu.Headline4}, headlines(got))

	got, err = svc.Filter(models.Criteria{DateTo: tu.Day(2013, time.September, 9)})
	require.NoError(t, err)
	assert.Equal(t, []string{tu.Headline3, tu.Headline4, tu.Headline5, tu.Headline6}, headlines(got))
}

func TestFilterSkipsUndatedStoriesOnDateBounds(t *testing.T) {
	svc, _ := setup(t, models.Story{Headline: "undated"}, tu.Wildfires())

	got, err := svc.Filter(models.Criteria{DateTo: tu.Day(2030, time.January, 1)})
	require.NoError(t, err)
	assert.Equal(t, []string{"Wildfires kill eight"}, headlines(got))

	got, err = svc.Filter(models.Criteria{Headline: "undated"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFilterRequiresCriterion(t *testing.T) {
	svc, _ := setup(t, tu.Wildfires())
	_, err := svc.Filter(models.Criteria{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPersistenceFailureLeavesStateUntouched(t *testing.T) {
	svc, mem := setup(t, tu.FirstSix()...)
	ctx := context.Background()
	before := svc.Stories()

	mem.SaveErr = errors.New("disk full")

	_, err := svc.Create(ctx, tu.Wildfires())
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	err = svc.UpdateHeadlineAt(ctx, 0, "x")
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	_, _, err = svc.SetAt(ctx, 1, models.Story{Headline: "x"})
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	_, err = svc.DeleteAt(ctx, 0)
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	ok, err := svc.Delete(ctx, tu.Headline2)
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	if diff := cmp.Diff(before, svc.Stories()); diff != "" {
		t.Errorf("state changed after failed saves (-before +after):\n%s", diff)
	}
}

func TestPersistsAcrossInstances(t *testing.T) {
	store := tu.TestStore(t)
	ctx := context.Background()

	first, err := newsservice.New(ctx, store)
	require.NoError(t, err)
	for _, s := range tu.FirstSix() {
		_, err := first.Create(ctx, s)
		require.NoError(t, err)
	}

	second, err := newsservice.New(ctx, store)
	require.NoError(t, err)
	if diff := cmp.Diff(first.Stories(), second.Stories()); diff != "" {
		t.Errorf("reloaded stories differ (-first +second):\n%s", diff)
	}
}

func TestReloadAssignsMissingIDs(t *testing.T) {
	mem := storage.NewMemory(models.Story{Headline: "legacy"})
	svc, err := newsservice.New(context.Background(), mem, sequentialIDs())
	require.NoError(t, err)

	got, err := svc.Get("legacy")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
}

func TestEvents(t *testing.T) {
	rec := &recorder{}
	svc, err := newsservice.New(context.Background(), storage.NewMemory(),
		newsservice.WithEvents(rec.record))
	require.NoError(t, err)
	ctx := context.Background()

	_, _ = svc.Create(ctx, models.Story{Headline: "one"})
	_, _ = svc.Create(ctx, models.Story{Headline: "two"})
	_, _ = svc.UpdateHeadline(ctx, "one", "uno")
	_, _ = svc.UpdateHeadline(ctx, "missing", "x")
	_, _ = svc.DeleteAt(ctx, 1)

	want := []event{
		{newsservice.EventCreated, 0, "one"},
		{newsservice.EventCreated, 1, "two"},
		{newsservice.EventUpdated, 0, "uno"},
		{newsservice.EventDeleted, 1, "two"},
	}
	if diff := cmp.Diff(want, rec.all(), cmp.AllowUnexported(event{})); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestConcurrentCreates(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, models.Story{Headline: fmt.Sprintf("story %d", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, svc.Size())
}

// gatedStore blocks Load once armed until release is closed.
type gatedStore struct {
	*storage.Memory
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Load(ctx context.Context) ([]models.Story, error) {
	if g.armed {
		close(g.entered)
		<-g.release
	}
	return g.Memory.Load(ctx)
}

func TestReloadDoesNotDropConcurrentCreate(t *testing.T) {
	store := &gatedStore{
		Memory:  storage.NewMemory(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc, err := newsservice.New(context.Background(), store)
	require.NoError(t, err)
	store.armed = true
	ctx := context.Background()

	reloaded := make(chan error, 1)
	go func() { reloaded <- svc.Reload(ctx) }()
	<-store.entered

	created := make(chan error, 1)
	go func() {
		_, err := svc.Create(ctx, models.Story{Headline: "during reload"})
		created <- err
	}()

	select {
	case err := <-created:
		t.Fatalf("create finished while reload held the collection: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	require.NoError(t, <-reloaded)
	require.NoError(t, <-created)

	assert.Equal(t, 1, svc.Size())
	assert.True(t, svc.Has("during reload"))
	stored, err := store.Memory.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
