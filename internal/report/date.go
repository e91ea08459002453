package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// Date is a scraped date that may or may not carry a time of day.
type Date struct {
	time.Time
	HasClock bool
}

// NewDate builds a date-only value.
func NewDate(year int, month time.Month, day int) *Date {
	return &Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// NewDateTime builds a value that carries a time of day.
func NewDateTime(t time.Time) *Date {
	return &Date{Time: t, HasClock: true}
}

// ParseDate accepts the date and date-time shapes emitted by the scraper.
func ParseDate(s string) (*Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &Date{Time: t}, nil
		}
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &Date{Time: t, HasClock: true}, nil
		}
	}
	return nil, fmt.Errorf("unable to parse date: %s", s)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.HasClock {
		return json.Marshal(d.Time.Format(time.RFC3339))
	}
	return json.Marshal(d.Time.Format("2006-01-02"))
}

// Calendar returns the calendar date as UTC midnight, or nil for an unset
// date.
func (d *Date) Calendar() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	day := time.Date(d.Year(), d.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
	return &day
}

// OptionalInt distinguishes a key that is absent from one sent as null.
type OptionalInt struct {
	Present bool
	Value   *int
}

func (o *OptionalInt) UnmarshalJSON(b []byte) error {
	o.Present = true
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
