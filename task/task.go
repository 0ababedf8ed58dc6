// Package task defines the study-planner task model, its validation rules and
// persistence against a per-identity document store.
package task

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists the accepted priority values in display order.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

var titleCaser = cases.Title(language.English)

// Label returns the capitalised display form, e.g. "High".
func (p Priority) Label() string {
	return titleCaser.String(string(p))
}

// Task is a single to-do entry owned by a signed-in identity.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"` // YYYY-MM-DD
	DueTime     string   `json:"dueTime"` // HH:MM
	Priority    Priority `json:"priority"`
	Completed   bool     `json:"completed"`
	CreatedAt   string   `json:"createdAt"` // RFC 3339, set once
}

// Record is the persisted payload of a task. The record identifier is
// assigned by the store and is not part of the payload.
type Record struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	DueTime     string   `json:"dueTime"`
	Priority    Priority `json:"priority"`
	Completed   bool     `json:"completed"`
	CreatedAt   string   `json:"createdAt"`
}

// Record strips the identifier from t.
func (t Task) Record() Record {
	return Record{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		DueTime:     t.DueTime,
		Priority:    t.Priority,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
	}
}

// WithID materialises a task from a stored record.
func (r Record) WithID(id string) Task {
	return Task{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
		DueTime:     r.DueTime,
		Priority:    r.Priority,
		Completed:   r.Completed,
		CreatedAt:   r.CreatedAt,
	}
}

// Draft is the unvalidated form state used to stage a new task.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	DueTime     string `json:"dueTime"`
	Priority    string `json:"priority"`
	Reminder    string `json:"reminder"` // accepted but never persisted
}

// IsZero reports whether every field of the draft is empty.
func (d Draft) IsZero() bool {
	return d == Draft{}
}

// Build validates d and constructs a new incomplete task from it. Title and
// description are trimmed; the id is generated locally.
func (d Draft) Build(now time.Time) (Task, error) {
	if err := d.Validate(); err != nil {
		return Task{}, err
	}
	return Task{
		ID:          NewID(now),
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		DueDate:     d.DueDate,
		DueTime:     d.DueTime,
		Priority:    Priority(d.Priority),
		Completed:   false,
		CreatedAt:   now.UTC().Format(time.RFC3339Nano),
	}, nil
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns a client-side identifier: the millisecond timestamp followed
// by a nine character base-36 random suffix.
func NewID(now time.Time) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	for range 9 {
		b.WriteByte(idAlphabet[rand.IntN(len(idAlphabet))])
	}
	return b.String()
}
