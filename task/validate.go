package task

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	minTitleLen = 3
	maxTitleLen = 100
)

var (
	ErrTitleRequired    = errors.New("title is required")
	ErrTitleTooShort    = errors.New("title must be at least 3 characters")
	ErrTitleTooLong     = errors.New("title must be at most 100 characters")
	ErrDateRequired     = errors.New("due date is required")
	ErrDateFormat       = errors.New("due date must be in YYYY-MM-DD format")
	ErrDateInvalid      = errors.New("due date is not a valid calendar date")
	ErrTimeRequired     = errors.New("due time is required")
	ErrTimeFormat       = errors.New("due time must be in HH:MM format (00:00-23:59)")
	ErrPriorityRequired = errors.New("priority is required")
	ErrPriorityInvalid  = errors.New("priority must be one of high, medium, low")
)

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// ValidateTitle checks a raw title. Length limits count characters, the
// lower bound after trimming and the upper bound on the raw input.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	switch {
	case trimmed == "":
		return ErrTitleRequired
	case utf8.RuneCountInString(trimmed) < minTitleLen:
		return ErrTitleTooShort
	case utf8.RuneCountInString(title) > maxTitleLen:
		return ErrTitleTooLong
	}
	return nil
}

// ValidateDate checks that date is a strict YYYY-MM-DD string naming a real
// calendar day.
func ValidateDate(date string) error {
	if date == "" {
		return ErrDateRequired
	}
	if !dateRe.MatchString(date) {
		return ErrDateFormat
	}
	y, _ := strconv.Atoi(date[0:4])
	m, _ := strconv.Atoi(date[5:7])
	d, _ := strconv.Atoi(date[8:10])
	// time.Date normalises overflow (Feb 30 -> Mar 2), so a mismatch means
	// the input was not a real day.
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return ErrDateInvalid
	}
	return nil
}

// ValidateTime checks a strict 24-hour HH:MM string.
func ValidateTime(clock string) error {
	if clock == "" {
		return ErrTimeRequired
	}
	if !timeRe.MatchString(clock) {
		return ErrTimeFormat
	}
	return nil
}

// ValidatePriority checks that p is one of the known priorities.
func ValidatePriority(p string) error {
	if p == "" {
		return ErrPriorityRequired
	}
	for _, known := range Priorities {
		if p == string(known) {
			return nil
		}
	}
	return ErrPriorityInvalid
}

// FieldError is a failed check on one draft field.
type FieldError struct {
	Field string `json:"field"`
	Err   error  `json:"-"`
}

func (e FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

// ValidationError collects every failed check of a draft.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid task: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual field errors to errors.Is.
func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.Err
	}
	return out
}

// Reasons maps field names to human-readable failure reasons.
func (e *ValidationError) Reasons() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = f.Err.Error()
	}
	return out
}

// Validate runs all four field checks and reports every failure at once.
func (d Draft) Validate() error {
	checks := []struct {
		field string
		err   error
	}{
		{"title", ValidateTitle(d.Title)},
		{"dueDate", ValidateDate(d.DueDate)},
		{"dueTime", ValidateTime(d.DueTime)},
		{"priority", ValidatePriority(d.Priority)},
	}
	var ve ValidationError
	for _, c := range checks {
		if c.err != nil {
			ve.Fields = append(ve.Fields, FieldError{Field: c.field, Err: c.err})
		}
	}
	if len(ve.Fields) == 0 {
		return nil
	}
	return &ve
}
