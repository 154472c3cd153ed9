package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	SkipHidden  bool
	InitialScan bool          // if true, walk roots and emit existing files
	Debounce    time.Duration // coalesce rapid create/write bursts per path
	Logger      *slog.Logger
}

// StartWatcher emits the paths of files that appear or change under the
// roots. Paths are emitted once their debounce window has passed quietly,
// so a file still being copied in is not picked up half written.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher.start.failed", "error", "no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("watcher.create.failed", "error", err)
		return nil, nil, err
	}

	var initial []string
	addDir := func(root string, onFile func(string)) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if path != root && cfg.SkipHidden && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if onFile != nil && d.Type().IsRegular() {
				onFile(path)
			}
			return nil
		})
	}
	var collect func(string)
	if cfg.InitialScan {
		collect = func(p string) { initial = append(initial, p) }
	}
	for _, r := range cfg.Roots {
		if err := addDir(r, collect); err != nil {
			logger.Error("watcher.add_root.failed", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	go func() {
		emit := func(p string) {
			select {
			case evCh <- p:
			case <-ctx.Done():
			}
		}
		deb := newDebouncer(cfg.Debounce, emit)
		defer func() {
			deb.stop()
			close(evCh)
			close(errCh)
			if err := w.Close(); err != nil {
				logger.Warn("watcher.close.failed", "error", err)
			}
		}()

		for _, p := range initial {
			emit(p)
		}

		fire := emit
		if cfg.Debounce > 0 {
			fire = deb.schedule
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if cfg.SkipHidden && IsHidden(e.Name) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				fi, err := os.Stat(e.Name)
				if err != nil {
					// gone already: moved out by a worker or deleted
					continue
				}
				if fi.IsDir() {
					if e.Op&fsnotify.Create != 0 {
						// files moved in along with the dir raise no events of their own
						if err := addDir(e.Name, fire); err != nil {
							logger.Warn("watcher.add_dir.failed", "path", e.Name, "error", err)
						}
					}
					continue
				}
				if !fi.Mode().IsRegular() {
					continue
				}
				fire(e.Name)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// debouncer emits a path once no new event for it has arrived for wait.
type debouncer struct {
	wait    time.Duration
	emit    func(string)
	mu      sync.Mutex
	gen     uint64
	timers  map[string]debounceTimer
	pending sync.WaitGroup
}

type debounceTimer struct {
	t   *time.Timer
	gen uint64
}

func newDebouncer(wait time.Duration, emit func(string)) *debouncer {
	return &debouncer{wait: wait, emit: emit, timers: map[string]debounceTimer{}}
}

func (d *debouncer) schedule(p string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.timers[p]; ok && cur.t.Stop() {
		cur.t.Reset(d.wait)
		return
	}
	// A timer that fired but has not reached expire yet is replaced here;
	// expire sees the newer generation and stays quiet.
	d.gen++
	gen := d.gen
	d.pending.Add(1)
	d.timers[p] = debounceTimer{t: time.AfterFunc(d.wait, func() { d.expire(p, gen) }), gen: gen}
}

func (d *debouncer) expire(p string, gen uint64) {
	defer d.pending.Done()
	d.mu.Lock()
	if cur, ok := d.timers[p]; !ok || cur.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.timers, p)
	d.mu.Unlock()
	d.emit(p)
}

// stop cancels waiting timers and returns once running callbacks finish.
func (d *debouncer) stop() {
	d.mu.Lock()
	for p, cur := range d.timers {
		if cur.t.Stop() {
			d.pending.Done()
		}
		delete(d.timers, p)
	}
	d.mu.Unlock()
	d.pending.Wait()
}
