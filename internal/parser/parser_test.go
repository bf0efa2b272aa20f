package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/gazette/internal/apperr"
	"github.com/starford/gazette/internal/models"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\nheadline: McEnroe routs Lendl\nauthor: United Press International\npublic: true\ndate: 1983-07-02\n---\nJohn McEnroe settled his grudge duel.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Headline != "McEnroe routs Lendl" {
		t.Errorf("headline = %q", r.Headline)
	}
	if r.Body != "John McEnroe settled his grudge duel.\n" {
		t.Errorf("body = %q", r.Body)
	}

	s, err := r.Story()
	if err != nil {
		t.Fatalf("Story: %v", err)
	}
	if s.Author != "United Press International" || !s.Public {
		t.Errorf("story = %+v", s)
	}
	want := time.Date(1983, time.July, 2, 0, 0, 0, 0, time.UTC)
	if s.Date == nil || !s.Date.Equal(want) {
		t.Errorf("date = %v, want %v", s.Date, want)
	}
	if s.Content != "John McEnroe settled his grudge duel." {
		t.Errorf("content = %q", s.Content)
	}
}

func TestParse_QuotedRFC3339Date(t *testing.T) {
	r, _ := Parse([]byte("---\nheadline: h\ndate: \"2020-09-10T15:04:05Z\"\n---\nbody"))
	s, err := r.Story()
	if err != nil {
		t.Fatalf("Story: %v", err)
	}
	if s.Date == nil || s.Date.Hour() != 15 {
		t.Errorf("date = %v", s.Date)
	}
}

func TestParse_BadDate(t *testing.T) {
	r, _ := Parse([]byte("---\nheadline: h\ndate: yesterday\n---\nbody"))
	_, err := r.Story()
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Headline != "Just a heading" {
		t.Errorf("headline = %q, want %q", r.Headline, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
	if _, err := r.Story(); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected missing headline, got %v", err)
	}
}

func TestDeriveHeadline_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"headline": "FM Headline"}
	if got := deriveHeadline(fm, "# H1 Headline\ntext"); got != "FM Headline" {
		t.Errorf("headline = %q, want %q", got, "FM Headline")
	}
	if got := deriveHeadline(nil, "some text\n# My Heading\nmore"); got != "My Heading" {
		t.Errorf("headline = %q, want %q", got, "My Heading")
	}
}

func TestRenderRoundTrip(t *testing.T) {
	d := time.Date(2013, time.July, 5, 0, 0, 0, 0, time.UTC)
	in := models.Story{
		Headline: "Nicaragua, Venezuela offer asylum to Snowden",
		Author:   "Associated Press",
		Public:   true,
		Content:  "Presidents Daniel Ortega of Nicaragua and Nicolas Maduro of Venezuela said Friday they were willing to grant asylum.",
		Date:     &d,
	}
	data, err := Render(in)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	r, _ := Parse(data)
	out, err := r.Story()
	if err != nil {
		t.Fatalf("Story: %v", err)
	}
	if out.Headline != in.Headline || out.Author != in.Author || out.Public != in.Public || out.Content != in.Content {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	if out.Date == nil || !out.Date.Equal(d) {
		t.Errorf("date = %v", out.Date)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"02-second.md": "---\nheadline: Second\n---\nb",
		"01-first.md":  "---\nheadline: First\nauthor: ann\n---\na",
		"03-broken.md": "no headline at all",
		"notes.txt":    "---\nheadline: Ignored\n---\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.md"), 0o755); err != nil {
		t.Fatal(err)
	}

	stories, err := LoadDir(dir, nil)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(stories) != 2 || stories[0].Headline != "First" || stories[1].Headline != "Second" {
		t.Fatalf("stories = %+v", stories)
	}
	if stories[0].Author != "ann" {
		t.Errorf("author = %q", stories[0].Author)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Fatal("expected error for missing dir")
	}
}
