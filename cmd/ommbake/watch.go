package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/omm-baker/internal/config"
)

// watcher rebakes jobs whose job file, image or geometry changes.
type watcher struct {
	r        *runner
	fs       *fsnotify.Watcher
	debounce time.Duration
	// deps maps a watched file to the jobs reading it.
	deps map[string]map[string]bool
	dirs map[string]bool
	// baked is called after every rebake attempt.
	baked func(job string, rep *report, err error)
}

func newWatcher(r *runner, debounce time.Duration) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &watcher{
		r:        r,
		fs:       fs,
		debounce: debounce,
		deps:     make(map[string]map[string]bool),
		dirs:     make(map[string]bool),
		baked:    func(string, *report, error) {},
	}, nil
}

func (w *watcher) close() error {
	return w.fs.Close()
}

func absPath(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return filepath.Clean(p)
}

// track registers the files job depends on. Directories are watched rather
// than files so editors that replace files are still seen.
func (w *watcher) track(job string) {
	for f, jobs := range w.deps {
		delete(jobs, job)
		if len(jobs) == 0 {
			delete(w.deps, f)
		}
	}

	files := []string{job}
	if j, err := config.LoadJob(job, w.r.cfg); err == nil {
		files = j.Dependencies()
	}
	for _, f := range files {
		f = absPath(f)
		if w.deps[f] == nil {
			w.deps[f] = make(map[string]bool)
		}
		w.deps[f][job] = true

		dir := filepath.Dir(f)
		if w.dirs[dir] {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			w.r.log.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.dirs[dir] = true
	}
}

func (w *watcher) rebake(ctx context.Context, job string) {
	rep, err := w.r.run(ctx, job)
	if err != nil {
		w.r.log.Error("bake failed", zap.String("job", job), zap.Error(err))
	}
	w.track(job)
	w.baked(job, rep, err)
}

// run bakes every job once, then rebakes on change until ctx is done.
func (w *watcher) run(ctx context.Context, jobs []string) error {
	for _, job := range jobs {
		w.rebake(ctx, job)
	}
	w.r.log.Info("watching", zap.Int("jobs", len(jobs)), zap.Int("directories", len(w.dirs)))

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			affected := w.deps[absPath(ev.Name)]
			if len(affected) == 0 {
				continue
			}
			w.r.log.Debug("change", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			for job := range affected {
				pending[job] = true
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.r.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			for job := range pending {
				delete(pending, job)
				w.rebake(ctx, job)
			}
		}
	}
}
