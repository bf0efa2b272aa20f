// Package parser converts between stories and Markdown documents with YAML
// frontmatter (headline, author, public, date).
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/gazette/internal/models"
)

// Result holds the output of parsing a Markdown document.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Headline    string
}

// Parse splits frontmatter from body and derives the headline.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Headline:    deriveHeadline(fm, body),
	}, nil
}

// Story builds a story from the parsed document. The body becomes the
// content with surrounding blank lines removed.
func (r *Result) Story() (models.Story, error) {
	s := models.Story{
		Headline: r.Headline,
		Author:   stringField(r.Frontmatter, "author"),
		Content:  strings.TrimSpace(r.Body),
	}
	if v, ok := r.Frontmatter["public"].(bool); ok {
		s.Public = v
	}

	switch v := r.Frontmatter["date"].(type) {
	case nil:
	case time.Time:
		t := v.UTC()
		s.Date = &t
	case string:
		d, err := models.ParseDate(v)
		if err != nil {
			return models.Story{}, err
		}
		s.Date = d
	default:
		return models.Story{}, fmt.Errorf("parser: unsupported date value %v", v)
	}

	return s, s.Validate()
}

type frontmatter struct {
	Headline string `yaml:"headline"`
	Author   string `yaml:"author,omitempty"`
	Public   bool   `yaml:"public"`
	Date     string `yaml:"date,omitempty"`
}

// Render writes s as a Markdown document that Parse reads back.
func Render(s models.Story) ([]byte, error) {
	fm, err := yaml.Marshal(frontmatter{
		Headline: s.Headline,
		Author:   s.Author,
		Public:   s.Public,
		Date:     models.FormatDate(s.Date),
	})
	if err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n")
	buf.WriteString(s.Content)
	if !strings.HasSuffix(s.Content, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without frontmatter the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// invalid YAML: whole document is body
		return nil, string(data), nil
	}

	return fm, body, nil
}

// deriveHeadline returns the frontmatter "headline", otherwise the first H1
// heading, otherwise "".
func deriveHeadline(fm map[string]any, body string) string {
	if h := stringField(fm, "headline"); h != "" {
		return h
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func stringField(fm map[string]any, key string) string {
	if fm == nil {
		return ""
	}
	if s, ok := fm[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
