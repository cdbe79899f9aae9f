// Package calendar stores per-day event documents, sealed at rest and
// scoped to the owning account.
package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultColor is applied when an event is created without one.
const DefaultColor = "#007AFF"

const (
	minTitleLen = 2
	maxTitleLen = 100
	maxDescLen  = 500
)

// Event is one calendar entry on a single day.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Time        string `json:"time"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color"`
}

var (
	ErrTitleRequired = errors.New("title is required")
	ErrTitleLength   = errors.New("title must be between 2 and 100 characters")
	ErrTimeRequired  = errors.New("time is required")
	ErrTimeFormat    = errors.New("time must look like 9:30 AM or 14:00")
	ErrDescTooLong   = errors.New("description must be at most 500 characters")
	ErrBadDateKey    = errors.New("date must be formatted YYYY-MM-DD")
	ErrBadColor      = errors.New("color must be a hex value like #007AFF")
)

// timePattern accepts 12-hour clock with AM/PM or 24-hour clock.
var timePattern = regexp.MustCompile(
	`^(0?[1-9]|1[0-2]):[0-5][0-9]\s?([APap][Mm])$|^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks the user-supplied fields. ID is assigned by the
// store and is not validated here.
func (e *Event) Validate() error {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return ErrTitleRequired
	}
	if len(title) < minTitleLen || len(title) > maxTitleLen {
		return ErrTitleLength
	}
	if strings.TrimSpace(e.Time) == "" {
		return ErrTimeRequired
	}
	if !timePattern.MatchString(strings.TrimSpace(e.Time)) {
		return ErrTimeFormat
	}
	if len(e.Description) > maxDescLen {
		return ErrDescTooLong
	}
	if e.Color != "" && !colorPattern.MatchString(e.Color) {
		return ErrBadColor
	}
	return nil
}

// DateKey is the canonical day key, YYYY-MM-DD.
type DateKey string

// NewDateKey formats t in its own location.
func NewDateKey(t time.Time) DateKey {
	return DateKey(t.Format("2006-01-02"))
}

// ParseDateKey validates a wire-format day key.
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadDateKey, s)
	}
	// Round-trip guards against accepted-but-noncanonical inputs such
	// as 2026-1-2.
	if t.Format("2006-01-02") != s {
		return "", fmt.Errorf("%w: %q", ErrBadDateKey, s)
	}
	return DateKey(s), nil
}

func (k DateKey) String() string { return string(k) }

// sortKey orders events within a day by clock time, 24-hour first
// normalization, then by title for stable ties.
func sortKey(e Event) (int, string) {
	m, ok := clockMinutes(e.Time)
	if !ok {
		m = 24 * 60
	}
	return m, strings.ToLower(e.Title)
}

// clockMinutes parses either accepted time shape into minutes past
// midnight.
func clockMinutes(s string) (int, bool) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	meridiem := ""
	switch {
	case strings.HasSuffix(upper, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(upper, "PM"):
		meridiem = "PM"
	}
	if meridiem != "" {
		s = strings.TrimSpace(s[:len(s)-2])
	}

	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if meridiem != "" {
		if h == 12 {
			h = 0
		}
		if meridiem == "PM" {
			h += 12
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
