package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type task func(ctx context.Context) error

// fanOut runs every task concurrently and returns as soon as one fails or all
// succeed. The first failure cancels the shared context, so siblings still in
// flight are cancelled and their results dropped rather than left running to
// completion in the background. The error channel holds one slot per task and
// never blocks a late sender.
func fanOut(ctx context.Context, tasks ...task) error {
	g, gctx := errgroup.WithContext(ctx)
	failed := make(chan error, len(tasks))

	for _, t := range tasks {
		g.Go(func() error {
			if err := t(gctx); err != nil {
				failed <- err
				return err
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case err := <-failed:
		return err
	case <-done:
		select {
		case err := <-failed:
			return err
		default:
			return nil
		}
	}
}
