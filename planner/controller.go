// Package planner holds the in-memory task list of the signed-in identity and
// mediates between local edits and the remote task store.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/GoCodeAlone/planner/auth"
	"github.com/GoCodeAlone/planner/comms"
	"github.com/GoCodeAlone/planner/task"
)

var (
	ErrNotSignedIn    = errors.New("not signed in")
	ErrSaveInProgress = errors.New("save already in progress")
	ErrTaskNotFound   = errors.New("task not found")
	ErrLoading        = errors.New("tasks are still loading")
)

// Sessions is the view of the auth provider the controller depends on.
type Sessions interface {
	Current() auth.Session
	Subscribe(ctx context.Context, fn auth.Listener) *auth.Subscription
}

// Persister loads and replaces an identity's whole task collection.
type Persister interface {
	LoadAll(ctx context.Context, identity string) []task.Task
	ReplaceAll(ctx context.Context, identity string, tasks []task.Task) error
}

// Controller is the only component that talks to the task store. Tasks are
// loaded once per identity activation and written back only by SaveAll.
type Controller struct {
	sessions Sessions
	store    Persister
	bus      comms.Bus // optional
	logger   *slog.Logger
	now      func() time.Time

	subMu sync.Mutex
	sub   *auth.Subscription

	mu       sync.Mutex
	identity auth.Identity
	// loadedFor is the uid whose tasks have been (or are being) loaded for
	// the current activation; "" when signed out.
	loadedFor string
	loading   bool
	tasks     []task.Task
	dirty     bool
	rev       uint64 // bumped on every local mutation
	saving    bool
	draft     task.Draft
	settings  Settings
}

// Option configures a Controller.
type Option func(*Controller)

// WithBus publishes task events on bus.
func WithBus(bus comms.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithSettings sets the initial settings.
func WithSettings(s Settings) Option {
	return func(c *Controller) { c.settings = s }
}

// New returns a controller. Call Start to begin following the session.
func New(sessions Sessions, store Persister, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		sessions: sessions,
		store:    store,
		logger:   logger,
		now:      time.Now,
		tasks:    []task.Task{},
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to session changes. It is a no-op when already started.
func (c *Controller) Start(ctx context.Context) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.sub != nil {
		return
	}
	c.sub = c.sessions.Subscribe(ctx, c.onSession)
}

// Close releases the session subscription.
func (c *Controller) Close() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
}

func (c *Controller) onSession(ctx context.Context, s auth.Session) {
	if !s.SignedIn() {
		c.mu.Lock()
		hadIdentity := c.identity.UID != ""
		c.identity = auth.Identity{}
		c.loadedFor = ""
		c.loading = false
		c.tasks = []task.Task{}
		c.dirty = false
		c.rev++
		c.mu.Unlock()
		if hadIdentity {
			c.logger.Info("signed out, local tasks cleared")
			c.publish(ctx, comms.TypeTasksChanged, map[string]any{"count": 0})
		}
		return
	}

	uid := s.Identity.UID
	c.mu.Lock()
	c.identity = s.Identity
	if c.loadedFor == uid {
		c.mu.Unlock()
		return
	}
	c.loadedFor = uid
	c.loading = true
	c.tasks = []task.Task{}
	c.dirty = false
	c.rev++
	c.mu.Unlock()

	loaded := c.store.LoadAll(ctx, uid)

	c.mu.Lock()
	if c.loadedFor != uid {
		// identity changed while loading
		c.mu.Unlock()
		return
	}
	c.tasks = loaded
	c.loading = false
	c.dirty = false
	c.rev++
	c.mu.Unlock()

	c.logger.Info("tasks loaded", slog.String("uid", uid), slog.Int("count", len(loaded)))
	c.publish(ctx, comms.TypeTasksLoaded, map[string]any{"count": len(loaded)})
}

// Tasks returns a copy of the in-memory list.
func (c *Controller) Tasks() []task.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.tasks)
}

// Dirty reports whether there are unsaved local changes.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Loading reports whether the initial load for the identity is pending.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// LoadedFor returns the uid whose tasks were loaded for the current
// activation, or "".
func (c *Controller) LoadedFor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedFor
}

// AddTask validates d and appends the resulting task. On success the stored
// draft is reset; on failure nothing changes.
func (c *Controller) AddTask(ctx context.Context, d task.Draft) (task.Task, error) {
	t, err := d.Build(c.now())
	if err != nil {
		return task.Task{}, err
	}

	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return task.Task{}, err
	}
	c.tasks = append(c.tasks, t)
	c.markDirtyLocked()
	c.draft = task.Draft{}
	n := len(c.tasks)
	c.mu.Unlock()

	c.publish(ctx, comms.TypeTasksChanged, map[string]any{"count": n, "added": t.ID})
	return t, nil
}

// ToggleCompletion flips the completed flag of task id.
func (c *Controller) ToggleCompletion(ctx context.Context, id string) (task.Task, error) {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return task.Task{}, err
	}
	i := slices.IndexFunc(c.tasks, func(t task.Task) bool { return t.ID == id })
	if i < 0 {
		c.mu.Unlock()
		return task.Task{}, ErrTaskNotFound
	}
	c.tasks[i].Completed = !c.tasks[i].Completed
	t := c.tasks[i]
	c.markDirtyLocked()
	n := len(c.tasks)
	c.mu.Unlock()

	c.publish(ctx, comms.TypeTasksChanged, map[string]any{"count": n, "toggled": id})
	return t, nil
}

// ClearCompleted removes every completed task and returns how many were
// removed. The list is only marked dirty when something was removed.
func (c *Controller) ClearCompleted(ctx context.Context) (int, error) {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	before := len(c.tasks)
	c.tasks = slices.DeleteFunc(c.tasks, func(t task.Task) bool { return t.Completed })
	removed := before - len(c.tasks)
	if removed > 0 {
		c.markDirtyLocked()
	}
	n := len(c.tasks)
	c.mu.Unlock()

	if removed > 0 {
		c.publish(ctx, comms.TypeTasksChanged, map[string]any{"count": n, "removed": removed})
	}
	return removed, nil
}

// ClearAll empties the list and marks it dirty.
func (c *Controller) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.tasks = []task.Task{}
	c.markDirtyLocked()
	c.mu.Unlock()

	c.publish(ctx, comms.TypeTasksChanged, map[string]any{"count": 0})
	return nil
}

// editableLocked reports why the list cannot be edited or saved right now.
// Nothing may change the list until the initial load has replaced it.
func (c *Controller) editableLocked() error {
	switch {
	case c.identity.UID == "":
		return ErrNotSignedIn
	case c.loading:
		return ErrLoading
	}
	return nil
}

func (c *Controller) markDirtyLocked() {
	c.dirty = true
	c.rev++
}

// SaveAll replaces the remote collection with the in-memory list. Only one
// save runs at a time; a second call while one is pending fails with
// ErrSaveInProgress. A list without unsaved changes is not written. Edits
// made while the save is pending keep the list dirty. On failure the list
// stays dirty and the error is returned.
func (c *Controller) SaveAll(ctx context.Context) error {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.saving {
		c.mu.Unlock()
		return ErrSaveInProgress
	}
	if !c.dirty {
		c.mu.Unlock()
		c.logger.Debug("save skipped, no unsaved changes")
		return nil
	}
	c.saving = true
	uid := c.identity.UID
	snapshot := slices.Clone(c.tasks)
	rev := c.rev
	c.mu.Unlock()

	c.logger.Info("saving tasks", slog.String("uid", uid), slog.Int("count", len(snapshot)))
	err := c.store.ReplaceAll(ctx, uid, snapshot)

	c.mu.Lock()
	c.saving = false
	if err == nil && c.rev == rev && c.identity.UID == uid {
		c.dirty = false
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("save tasks", slog.String("uid", uid), slog.Any("err", err))
		c.publish(ctx, comms.TypeTasksSaveFail, map[string]any{"error": err.Error()})
		return err
	}
	c.publish(ctx, comms.TypeTasksSaved, map[string]any{"count": len(snapshot)})
	return nil
}

// Draft returns the staged form state.
func (c *Controller) Draft() task.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetDraft replaces the staged form state.
func (c *Controller) SetDraft(d task.Draft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = d
}

// ClearDraft resets the staged form state to empty.
func (c *Controller) ClearDraft() {
	c.SetDraft(task.Draft{})
}

// SubmitDraft adds the staged draft as a task.
func (c *Controller) SubmitDraft(ctx context.Context) (task.Task, error) {
	return c.AddTask(ctx, c.Draft())
}

func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Controller) UpdateSettings(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

// Calendar lays out year/month from the in-memory list.
func (c *Controller) Calendar(year int, month time.Month) task.Month {
	return task.BuildMonth(c.Tasks(), year, month, c.now())
}

// Upcoming lists the next open tasks by due date.
func (c *Controller) Upcoming(limit int) []task.Task {
	return task.Upcoming(c.Tasks(), limit)
}

// Status is a snapshot of what a client needs to render.
type Status struct {
	State   auth.State `json:"state"`
	Email   string     `json:"email,omitempty"`
	Tasks   int        `json:"tasks"`
	Dirty   bool       `json:"dirty"`
	Saving  bool       `json:"saving"`
	Loading bool       `json:"loading"`
	CanSave bool       `json:"canSave"`
}

func (c *Controller) Status() Status {
	s := c.sessions.Current()
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:   s.State,
		Email:   c.identity.Email,
		Tasks:   len(c.tasks),
		Dirty:   c.dirty,
		Saving:  c.saving,
		Loading: c.loading,
		CanSave: c.dirty && !c.saving && !c.loading && c.identity.UID != "",
	}
}

func (c *Controller) publish(ctx context.Context, typ comms.EventType, payload any) {
	if c.bus == nil {
		return
	}
	err := c.bus.Publish(ctx, &comms.Event{
		Type:      typ,
		Topic:     comms.TopicTasks,
		Payload:   payload,
		Timestamp: c.now(),
	})
	if err != nil {
		c.logger.Warn("publish event", slog.String("type", string(typ)), slog.Any("err", err))
	}
}
