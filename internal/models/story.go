// Package models defines the domain types for Gazette.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gazette/internal/apperr"
)

// DateLayout is the calendar-day form accepted from forms and query strings.
const DateLayout = "2006-01-02"

// Story is a single news item. It has no identity beyond its position in the
// owning collection except for ID, which is assigned once and never reused.
type Story struct {
	ID       string     `json:"id,omitempty"`
	Author   string     `json:"author"`
	Headline string     `json:"headline"`
	Public   bool       `json:"public"`
	Content  string     `json:"content"`
	Date     *time.Time `json:"date"`
}

// UnmarshalJSON accepts the date in any form ParseDate does, so a stored
// calendar day such as "2020-09-10" loads as well as an RFC 3339 timestamp.
func (s *Story) UnmarshalJSON(data []byte) error {
	type plain Story
	aux := struct {
		*plain
		Date *string `json:"date"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Date = nil
	if aux.Date != nil {
		d, err := ParseDate(*aux.Date)
		if err != nil {
			return err
		}
		s.Date = d
	}
	return nil
}

// Validate reports a *apperr.ValidationError when the headline is missing.
func (s Story) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Headline, validation.Required.Error("headline is not specified")),
	)
	return asValidationError(err)
}

// Criteria selects stories in Filter. Zero-valued fields are absent.
type Criteria struct {
	Headline string     `json:"headline,omitempty"`
	DateFrom *time.Time `json:"dateFrom,omitempty"`
	DateTo   *time.Time `json:"dateTo,omitempty"`
	Author   string     `json:"author,omitempty"`
}

// Empty reports whether no criterion is set.
func (c Criteria) Empty() bool {
	return c.Headline == "" && c.DateFrom == nil && c.DateTo == nil && c.Author == ""
}

// Matches reports whether s satisfies every criterion that is set.
// A story without a date never satisfies a date bound.
func (c Criteria) Matches(s Story) bool {
	if c.Headline != "" && !strings.Contains(s.Headline, c.Headline) {
		return false
	}
	if c.DateFrom != nil && (s.Date == nil || s.Date.Before(*c.DateFrom)) {
		return false
	}
	if c.DateTo != nil && (s.Date == nil || s.Date.After(*c.DateTo)) {
		return false
	}
	if c.Author != "" && s.Author != c.Author {
		return false
	}
	return true
}

// ParseDate accepts a calendar day (2006-01-02) or an RFC 3339 timestamp.
// An empty string yields nil. Results are normalised to UTC.
func ParseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{DateLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &apperr.ValidationError{Field: "date", Message: fmt.Sprintf("unrecognised date %q", raw)}
}

// FormatDate renders d as a calendar day, or "" for nil.
func FormatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.UTC().Format(DateLayout)
}

func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for field, fe := range fieldErrs {
			return &apperr.ValidationError{Field: field, Message: fe.Error()}
		}
	}
	return &apperr.ValidationError{Message: err.Error()}
}
