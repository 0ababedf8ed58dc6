// Package api defines the REST API handlers and interfaces for the planner server.
package api

import (
	"context"
	"time"

	"github.com/GoCodeAlone/planner/planner"
	"github.com/GoCodeAlone/planner/task"
)

// Planner is the interface the API uses to read and edit the task list.
// Implemented by *planner.Controller.
type Planner interface {
	Tasks() []task.Task
	AddTask(ctx context.Context, d task.Draft) (task.Task, error)
	ToggleCompletion(ctx context.Context, id string) (task.Task, error)
	ClearCompleted(ctx context.Context) (int, error)
	ClearAll(ctx context.Context) error
	SaveAll(ctx context.Context) error

	Draft() task.Draft
	SetDraft(d task.Draft)
	ClearDraft()
	SubmitDraft(ctx context.Context) (task.Task, error)

	Settings() planner.Settings
	UpdateSettings(s planner.Settings)

	Calendar(year int, month time.Month) task.Month
	Upcoming(limit int) []task.Task
	Status() planner.Status
}

var _ Planner = (*planner.Controller)(nil)
