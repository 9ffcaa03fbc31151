// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package preview

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.astrophena.name/base/logger"
	"go.astrophena.name/guides/internal/site"

	"github.com/fsnotify/fsnotify"
)

var serveReadyHook func() // used in tests, called when Serve started serving the preview

// rebuilder runs build once changes have settled for delay, so that a
// burst of writes from an editor triggers a single build.
type rebuilder struct {
	delay time.Duration
	build func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// Schedule (re)starts the delay. It does nothing after Stop.
func (r *rebuilder) Schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	if r.timer == nil {
		r.timer = time.AfterFunc(r.delay, r.build)
		return
	}
	r.timer.Reset(r.delay)
}

// Stop cancels a pending build. A build that is already running is not
// interrupted.
func (r *rebuilder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
}

// Serve publishes the guides described by sc, builds the preview and starts
// serving it on a provided host:port. It rebuilds both whenever something
// in sc.Src changes.
//
// If pc.Dst is empty, the preview is built in a temporary directory that is
// removed when Serve returns. pc.Src is always set to sc.Dst.
func Serve(ctx context.Context, sc *site.Config, pc *Config, addr string) error {
	if err := sc.Prepare(); err != nil {
		return err
	}
	if err := site.CheckOutputDir(sc.Src, sc.Dst); err != nil {
		return err
	}
	pc.Src = sc.Dst
	if pc.Dst == "" {
		tmpdir, err := os.MkdirTemp("", "guides-preview")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmpdir)
		pc.Dst = tmpdir
	}
	pc.setDefaults()

	// Rebuilds run on a timer goroutine. They must not overlap, and must
	// not start once Serve is returning and the preview may be removed.
	var (
		buildMu sync.Mutex
		closed  bool
	)
	build := func() error {
		buildMu.Lock()
		defer buildMu.Unlock()
		if closed {
			return nil
		}
		if err := site.Build(ctx, sc); err != nil {
			return err
		}
		return Build(ctx, pc)
	}

	logger.Info(ctx, "performing an initial build")
	if err := build(); err != nil {
		logger.Error(ctx, "initial build failed", slog.Any("err", err))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watchRecursive(watcher, sc.Src, sc.Dst, pc.Dst); err != nil {
		return err
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer l.Close()
	logger.Info(ctx, "listening for HTTP requests", slog.String("addr", "http://"+l.Addr().String()))

	httpSrv := &http.Server{Handler: &guideHandler{fs: os.DirFS(pc.Dst)}}
	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				errCh <- err
			}
		}
	}()

	rb := &rebuilder{
		delay: 250 * time.Millisecond,
		build: func() {
			logger.Info(ctx, "triggering build")
			if err := build(); err != nil {
				logger.Error(ctx, "failed to rebuild the guides", slog.Any("err", err))
			}
		},
	}
	defer func() {
		rb.Stop()
		buildMu.Lock()
		closed = true
		buildMu.Unlock()
	}()

	go func() {
		logger.Info(ctx, "started watching for new changes")

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if within(event.Name, sc.Dst) || within(event.Name, pc.Dst) {
					continue
				}
				if !shouldRebuild(event.Name, event.Op) {
					continue
				}
				logger.Info(ctx, "detected change, scheduling build",
					slog.String("name", event.Name),
					slog.Any("op", event.Op),
				)
				rb.Schedule()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error(ctx, "watcher error", slog.Any("err", err))
			case <-ctx.Done():
				return
			}
		}
	}()

	if serveReadyHook != nil {
		serveReadyHook()
	}

	select {
	case <-ctx.Done():
		logger.Info(ctx, "gracefully shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return httpSrv.Shutdown(shutdownCtx)
}

// within reports whether path is dir or is inside it.
func within(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func watchRecursive(w *fsnotify.Watcher, dir string, skip ...string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		for _, s := range skip {
			if within(path, s) {
				return filepath.SkipDir
			}
		}
		return w.Add(path)
	})
}

// shouldRebuild reports whether a file system event can change the
// published guides.
func shouldRebuild(path string, op fsnotify.Op) bool {
	name := filepath.Base(path)
	// Vim creates 4913 to check that it can write into a directory.
	if name == "4913" || site.IsIgnorable(name) {
		return false
	}
	// Rename is followed by Create for the new name.
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Remove) || op.Has(fsnotify.Write)
}

// guideHandler serves the built preview. /name is served from name.html if
// it exists. Directories are never listed.
type guideHandler struct {
	fs fs.FS
}

func (h *guideHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, fi, err := h.lookup(r.URL.Path)
	if errors.Is(err, fs.ErrNotExist) {
		h.notFound(w, r)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	b, err := fs.ReadFile(h.fs, name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), bytes.NewReader(b))
}

// lookup maps a request path to a regular file in h.fs.
func (h *guideHandler) lookup(urlPath string) (string, fs.FileInfo, error) {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		name = "index.html"
	}
	for _, candidate := range []string{name + ".html", name} {
		fi, err := fs.Stat(h.fs, candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return "", nil, err
		}
		if !fi.IsDir() {
			return candidate, fi, nil
		}
	}
	return "", nil, fs.ErrNotExist
}

func (h *guideHandler) notFound(w http.ResponseWriter, r *http.Request) {
	b, err := fs.ReadFile(h.fs, notFound.Path)
	if errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write(b)
}
