package engine

import (
	"context"

	"github.com/hupe1980/kpagg/resource"
	"golang.org/x/sync/errgroup"
)

// writer runs persistence jobs on a bounded errgroup. Jobs outlive
// cancellation of the run so that every submitted write completes before a
// checkpoint records it.
type writer struct {
	ctx   context.Context
	rc    *resource.Controller
	limit int

	g    *errgroup.Group
	gctx context.Context
}

func newWriter(ctx context.Context, limit int, rc *resource.Controller) *writer {
	w := &writer{
		ctx:   context.WithoutCancel(ctx),
		rc:    rc,
		limit: limit,
	}
	w.reset()
	return w
}

func (w *writer) reset() {
	w.g, w.gctx = errgroup.WithContext(w.ctx)
	w.g.SetLimit(w.limit)
}

// submit schedules fn, blocking while the group is full.
func (w *writer) submit(fn func(ctx context.Context) error) {
	w.g.Go(func() error {
		if err := w.rc.AcquireWriter(w.gctx); err != nil {
			return err
		}
		defer w.rc.ReleaseWriter()
		return fn(w.gctx)
	})
}

// failed reports whether a job has returned an error.
func (w *writer) failed() bool { return w.gctx.Err() != nil }

// flush waits for all submitted jobs and returns the first error.
func (w *writer) flush() error {
	err := w.g.Wait()
	w.reset()
	return err
}
