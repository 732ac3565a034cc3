package extension

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/extstore/internal/watcher"
)

// defaultWatchDebounce is the quiet period before a change burst triggers
// a reload.
const defaultWatchDebounce = 250 * time.Millisecond

// Watch reloads the store whenever the installed-extensions directory
// changes on disk. Bursts of changes are debounced into one reload, and
// reloads triggered while one is in flight coalesce as usual.
//
// Watching observes the real file system, so it only works when the store
// was built on the OS backend. The returned stop function is idempotent.
func (s *Store) Watch(ctx context.Context) (stop func(), err error) {
	w, err := watcher.New(s.scanner.InstalledDir())
	if err != nil {
		return nil, err
	}
	debouncer := watcher.NewDebouncer(w.Events(), defaultWatchDebounce)

	done := make(chan struct{})
	go func() {
		defer debouncer.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				s.logger.Warn("extension directory watcher", zap.Error(err))
			case _, ok := <-debouncer.C():
				if !ok {
					return
				}
				// Bypass the cache: a change inside an extension's
				// subtree does not touch the installed directory's own
				// mtime, which is all the cache key records.
				if err := s.reload(ctx, false); err != nil {
					s.logger.Warn("reload after directory change", zap.Error(err))
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			_ = w.Close()
		})
	}, nil
}
