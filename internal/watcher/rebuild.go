package watcher

import (
	"context"
	"time"

	"github.com/conneroisu/buildlens/internal/errors"
	"github.com/conneroisu/buildlens/internal/hooks"
)

// Rebuilder is the part of a build host the watcher drives.
type Rebuilder interface {
	Invalidate(fileName string, changeTime time.Time)
	Run(ctx context.Context) (*hooks.CompileFinished, error)
}

// RebuildHandler reports each changed file to r and then runs one build for
// the whole batch. Host build failures have already reached observers through
// compileFailed, so they are not returned again.
func RebuildHandler(r Rebuilder) ChangeHandler {
	return func(ctx context.Context, events []ChangeEvent) error {
		for _, ev := range events {
			r.Invalidate(ev.Path, ev.ModTime)
		}
		_, err := r.Run(ctx)
		if err == nil || ctx.Err() != nil || errors.IsKind(err, errors.KindHostBuild) {
			return nil
		}
		return err
	}
}
