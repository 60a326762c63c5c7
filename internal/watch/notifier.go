package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 300 * time.Millisecond

// Notifier signals when a repository's refs may have moved. It watches the
// git directory (HEAD, packed-refs, refs/heads) and coalesces bursts of file
// events into a single signal. Polling stays authoritative; a dropped signal
// only delays a review until the next tick.
type Notifier struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	timer    *time.Timer
	events   chan struct{}
	debounce time.Duration
	logger   *zap.Logger
	closed   bool
}

// NewNotifier creates a Notifier. A nil logger is replaced with a no-op one.
func NewNotifier(logger *zap.Logger, debounce time.Duration) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Notifier{
		events:   make(chan struct{}, 1),
		debounce: debounce,
		logger:   logger,
	}
}

// Events delivers at most one pending signal at a time.
func (n *Notifier) Events() <-chan struct{} {
	return n.events
}

// Start watches the repository rooted at root, replacing any previous watch.
func (n *Notifier) Start(root string) error {
	gitDir, err := resolveGitDir(root)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dirs := []string{gitDir, filepath.Join(gitDir, "refs", "heads")}
	for _, dir := range dirs {
		if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			n.logger.Warn("watcher add failed", zap.String("path", dir), zap.Error(err))
		}
	}

	n.mu.Lock()
	previous := n.watcher
	n.watcher = watcher
	n.closed = false
	n.mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}

	go n.observe(watcher)
	n.logger.Debug("watching git directory", zap.String("gitDir", gitDir))
	return nil
}

// Close stops watching. Events is never closed, so receivers simply stop
// getting signals.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.watcher == nil {
		return nil
	}
	err := n.watcher.Close()
	n.watcher = nil
	return err
}

func (n *Notifier) observe(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !isRefEvent(ev) {
				continue
			}
			n.schedule()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			n.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (n *Notifier) schedule() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.debounce, func() {
		select {
		case n.events <- struct{}{}:
		default:
			// a signal is already pending
		}
	})
}

// isRefEvent filters out index and object churn that does not move HEAD.
func isRefEvent(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasSuffix(base, ".lock") {
		// git renames the .lock into place; the rename shows up as a create
		return false
	}
	switch base {
	case "HEAD", "ORIG_HEAD", "packed-refs":
		return true
	}
	return strings.Contains(filepath.ToSlash(ev.Name), "/refs/heads/")
}

// resolveGitDir returns the git directory for a work tree, following the
// "gitdir: <path>" indirection used by linked worktrees and submodules.
func resolveGitDir(root string) (string, error) {
	dotGit := filepath.Join(root, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return "", fmt.Errorf("failed to locate git directory: %w", err)
	}
	if info.IsDir() {
		return dotGit, nil
	}

	content, err := os.ReadFile(dotGit)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dotGit, err)
	}
	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir:") {
		return "", fmt.Errorf("unrecognized .git file in %s", root)
	}
	gitDir := strings.TrimSpace(strings.TrimPrefix(line, "gitdir:"))
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(root, gitDir)
	}
	return filepath.Clean(gitDir), nil
}
