package task

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Adapter maps a signed-in identity onto its task collection and exposes
// whole-collection load and replace operations.
type Adapter struct {
	store  Store
	logger *slog.Logger
}

// NewAdapter wraps store. A nil logger falls back to slog.Default.
func NewAdapter(store Store, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{store: store, logger: logger}
}

// LoadAll returns every task stored for identity. It never fails: without an
// identity, or when the fetch errors, the error is logged and an empty list
// is returned.
func (a *Adapter) LoadAll(ctx context.Context, identity string) []Task {
	if identity == "" {
		a.logger.Warn("load tasks: no identity bound")
		return []Task{}
	}
	tasks, err := a.store.List(ctx, identity)
	if err != nil {
		a.logger.Error("load tasks", slog.String("identity", identity), slog.Any("err", err))
		return []Task{}
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks
}

// ReplaceAll makes identity's collection hold exactly tasks. It deletes every
// existing record, waits for all deletions, then inserts each task as a new
// record and waits for all insertions. Stored identifiers are assigned by the
// store; identifiers carried by tasks are discarded.
//
// The two phases are not atomic. A failure after the delete phase leaves the
// collection empty or partially filled, and a failure inside a phase leaves it
// partially deleted or partially inserted. Nothing is retried or rolled back.
//
// Without an identity ReplaceAll logs and returns nil.
func (a *Adapter) ReplaceAll(ctx context.Context, identity string, tasks []Task) error {
	if identity == "" {
		a.logger.Warn("save tasks: no identity bound")
		return nil
	}

	existing, err := a.store.List(ctx, identity)
	if err != nil {
		return fmt.Errorf("fetch existing tasks: %w", err)
	}

	del, dctx := errgroup.WithContext(ctx)
	for _, t := range existing {
		id := t.ID
		del.Go(func() error {
			return a.store.Delete(dctx, identity, id)
		})
	}
	if err := del.Wait(); err != nil {
		return fmt.Errorf("delete existing tasks: %w", err)
	}

	ins, ictx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		rec := t.Record()
		ins.Go(func() error {
			_, err := a.store.Insert(ictx, identity, rec)
			return err
		})
	}
	if err := ins.Wait(); err != nil {
		return fmt.Errorf("insert tasks: %w", err)
	}

	a.logger.Info("tasks replaced",
		slog.String("identity", identity),
		slog.Int("deleted", len(existing)),
		slog.Int("inserted", len(tasks)),
	)
	return nil
}
