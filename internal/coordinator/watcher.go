package coordinator

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tphakala/drawmap/internal/drawing"
	"github.com/tphakala/drawmap/internal/errors"
	"github.com/tphakala/drawmap/internal/logger"
)

const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Rename

// dirWatcher turns file-system notifications for drawing files into
// debounced rescan requests.
type dirWatcher struct {
	w        *fsnotify.Watcher
	debounce time.Duration
	onChange func()
	log      logger.Logger
}

func newDirWatcher(dir string, debounce time.Duration, onChange func(), log logger.Logger) (*dirWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.New(err).
			Component("coordinator").
			Category(errors.CategoryWatcher).
			Build()
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, errors.New(err).
			Component("coordinator").
			Category(errors.CategoryWatcher).
			Context("dir", dir).
			Build()
	}
	return &dirWatcher{w: w, debounce: debounce, onChange: onChange, log: log}, nil
}

func (d *dirWatcher) run(ctx context.Context) error {
	defer func() { _ = d.w.Close() }()

	timer := time.NewTimer(d.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-d.w.Events:
			if !ok {
				return nil
			}
			if ev.Op&relevantOps == 0 || !drawing.IsDrawingFile(ev.Name) {
				continue
			}
			d.log.Trace("Drawing changed", logger.String("path", ev.Name), logger.String("op", ev.Op.String()))
			timer.Reset(d.debounce)

		case err, ok := <-d.w.Errors:
			if !ok {
				return nil
			}
			// Overflow can drop events, so force a rescan.
			d.log.Warn("File watcher error", logger.Error(err))
			timer.Reset(d.debounce)

		case <-timer.C:
			d.onChange()
		}
	}
}
