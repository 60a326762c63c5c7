// Package gitrepo answers the read-only questions commitreview asks a Git
// repository: what HEAD is, what a commit changed, and whether origin moved.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

var (
	ErrNotRepository = errors.New("not a git repository")
	ErrNoCommits     = errors.New("repository has no commits yet")
)

const remoteName = "origin"

// FileStat is the per-file line count of a commit.
type FileStat struct {
	Path    string
	Added   int
	Removed int
}

// Commit is a commit's metadata together with its patch against the first parent.
type Commit struct {
	Hash      string
	ShortHash string
	Message   string
	Subject   string
	Author    string
	Email     string
	When      time.Time
	Branch    string

	// Diff is the unified patch, possibly cut to Options.MaxDiffBytes.
	Diff      string
	Truncated bool
	Stats     []FileStat
}

// Options configures how a Repository is read.
type Options struct {
	// MaxDiffBytes caps Commit.Diff. Zero disables the cap.
	MaxDiffBytes int

	// Runner executes the git binary for fetches. Defaults to ExecRunner.
	Runner Runner

	Logger *zap.Logger
}

// Repository is an opened work tree.
type Repository struct {
	mu     sync.Mutex
	root   string
	repo   *git.Repository
	opts   Options
	logger *zap.Logger
}

// Open opens the repository containing path. Parent directories are searched
// for .git, so any directory inside the work tree is accepted.
func Open(path string, opts Options) (*Repository, error) {
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, abs)
		}
		return nil, fmt.Errorf("failed to open repository %s: %w", abs, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no work tree: %v", ErrNotRepository, abs, err)
	}

	if opts.Runner == nil {
		opts.Runner = NewExecRunner("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Repository{
		root:   wt.Filesystem.Root(),
		repo:   repo,
		opts:   opts,
		logger: logger,
	}, nil
}

// Root returns the top-level directory of the work tree.
func (r *Repository) Root() string {
	return r.root
}

func (r *Repository) current() *git.Repository {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.repo
}

// Reload re-reads the repository from disk, dropping any cached state.
func (r *Repository) Reload() error {
	repo, err := git.PlainOpen(r.root)
	if err != nil {
		return fmt.Errorf("failed to reload repository %s: %w", r.root, err)
	}
	r.mu.Lock()
	r.repo = repo
	r.mu.Unlock()
	return nil
}

// HeadHash returns the hash HEAD currently resolves to.
func (r *Repository) HeadHash(ctx context.Context) (string, error) {
	ref, err := r.head()
	if err != nil {
		return "", err
	}
	return ref.Hash().String(), nil
}

func (r *Repository) head() (*plumbing.Reference, error) {
	ref, err := r.current().Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, ErrNoCommits
		}
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return ref, nil
}

// Branch returns the short name of the checked out branch, or "" when detached.
func (r *Repository) Branch() string {
	ref, err := r.head()
	if err != nil {
		// An unborn branch still has a symbolic HEAD.
		sym, symErr := r.current().Reference(plumbing.HEAD, false)
		if symErr != nil || sym.Type() != plumbing.SymbolicReference {
			return ""
		}
		return sym.Target().Short()
	}
	if ref.Name().IsBranch() {
		return ref.Name().Short()
	}
	return ""
}

// Head loads the commit HEAD points at.
func (r *Repository) Head(ctx context.Context) (*Commit, error) {
	hash, err := r.HeadHash(ctx)
	if err != nil {
		return nil, err
	}
	return r.Commit(ctx, hash)
}

// Commit loads metadata and the patch of the given commit.
func (r *Repository) Commit(ctx context.Context, hash string) (*Commit, error) {
	c, err := r.current().CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", shortHash(hash), err)
	}

	patch, err := commitPatch(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to diff commit %s: %w", shortHash(hash), err)
	}

	diff, truncated := truncateDiff(patch.String(), r.opts.MaxDiffBytes)
	if truncated {
		r.logger.Debug("diff truncated",
			zap.String("commit", shortHash(hash)),
			zap.Int("maxBytes", r.opts.MaxDiffBytes))
	}

	stats := make([]FileStat, 0)
	for _, fs := range patch.Stats() {
		stats = append(stats, FileStat{Path: fs.Name, Added: fs.Addition, Removed: fs.Deletion})
	}

	message := strings.TrimSpace(c.Message)
	return &Commit{
		Hash:      c.Hash.String(),
		ShortHash: shortHash(c.Hash.String()),
		Message:   message,
		Subject:   strings.SplitN(message, "\n", 2)[0],
		Author:    c.Author.Name,
		Email:     c.Author.Email,
		When:      c.Author.When,
		Branch:    r.Branch(),
		Diff:      diff,
		Truncated: truncated,
		Stats:     stats,
	}, nil
}

// commitPatch diffs c against its first parent, or against the empty tree for
// a root commit.
func commitPatch(ctx context.Context, c *object.Commit) (*object.Patch, error) {
	if c.NumParents() == 0 {
		tree, err := c.Tree()
		if err != nil {
			return nil, err
		}
		return (&object.Tree{}).PatchContext(ctx, tree)
	}

	parent, err := c.Parent(0)
	if err != nil {
		return nil, err
	}
	return parent.PatchContext(ctx, c)
}

// RemoteAhead reports whether origin's copy of the current branch has commits
// that local HEAD does not. Repositories without origin or without a tracking
// ref report false.
func (r *Repository) RemoteAhead(ctx context.Context) (bool, error) {
	branch := r.Branch()
	if branch == "" {
		return false, nil
	}

	repo := r.current()
	if _, err := repo.Remote(remoteName); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read remote %s: %w", remoteName, err)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(remoteName, branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to resolve %s/%s: %w", remoteName, branch, err)
	}

	head, err := r.head()
	if err != nil {
		return false, err
	}
	if remoteRef.Hash() == head.Hash() {
		return false, nil
	}

	local, err := repo.CommitObject(head.Hash())
	if err != nil {
		return false, fmt.Errorf("failed to load HEAD commit: %w", err)
	}
	remote, err := repo.CommitObject(remoteRef.Hash())
	if err != nil {
		// Fetched ref whose objects are missing locally; treat as ahead.
		return true, nil
	}
	// origin is behind or equal only when its tip is already part of HEAD
	contained, err := remote.IsAncestor(local)
	if err != nil {
		return false, fmt.Errorf("failed to compare HEAD with %s/%s: %w", remoteName, branch, err)
	}
	return !contained, nil
}

// Fetch updates origin's refs with the git binary, so the user's credential
// helpers and SSH agent apply. It does not reload; callers follow it with
// Reload. A repository without origin is a no-op.
func (r *Repository) Fetch(ctx context.Context) error {
	if _, err := r.current().Remote(remoteName); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			r.logger.Debug("no origin remote, skipping fetch", zap.String("root", r.root))
			return nil
		}
		return fmt.Errorf("failed to read remote %s: %w", remoteName, err)
	}

	_, err := r.opts.Runner.Run(ctx, r.root, "fetch", "--quiet", remoteName)
	return err
}

// truncateDiff cuts diff to at most max bytes on a line boundary and appends a
// marker line. A first line longer than max is cut on a rune boundary.
func truncateDiff(diff string, max int) (string, bool) {
	if max <= 0 || len(diff) <= max {
		return diff, false
	}
	cut := diff[:max]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		return fmt.Sprintf("%s... diff truncated (%d of %d bytes shown)\n", cut[:idx+1], idx+1, len(diff)), true
	}

	end := max
	for end > 0 && !utf8.RuneStart(diff[end]) {
		end--
	}
	return fmt.Sprintf("%s\n... diff truncated (%d of %d bytes shown)\n", diff[:end], end, len(diff)), true
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
