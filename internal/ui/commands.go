package ui

import (
	"context"
	"time"

	"github.com/atinylittleshell/commitreview/internal/gitrepo"
	"github.com/atinylittleshell/commitreview/internal/review"
	tea "github.com/charmbracelet/bubbletea"
)

// gitTimeout bounds local git queries and fetches.
const gitTimeout = 30 * time.Second

// Repo is the subset of *gitrepo.Repository the window drives.
type Repo interface {
	Root() string
	Branch() string
	HeadHash(ctx context.Context) (string, error)
	Commit(ctx context.Context, hash string) (*gitrepo.Commit, error)
	RemoteAhead(ctx context.Context) (bool, error)
	Fetch(ctx context.Context) error
	Reload() error
}

// OpenFunc opens the repository containing path.
type OpenFunc func(path string) (Repo, error)

// Notifier signals that refs may have moved. *watch.Notifier satisfies it.
type Notifier interface {
	Start(root string) error
	Events() <-chan struct{}
	Close() error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type tickMsg time.Time

type repoOpenedMsg struct {
	gen  int
	path string
	repo Repo
	err  error
}

type headMsg struct {
	gen         int
	hash        string
	remoteAhead bool
	remoteErr   error
	manual      bool
	err         error
}

type reviewMsg struct {
	gen    int
	hash   string
	commit *gitrepo.Commit
	result *review.Result
	err    error
}

type refreshedMsg struct {
	gen int
	err error
}

type pingMsg struct {
	err error
}

type notifyMsg struct{}

type versionMsg string

type candidatesMsg []string

type copiedMsg struct {
	err error
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func openRepoCmd(gen int, path string, open OpenFunc) tea.Cmd {
	return func() tea.Msg {
		repo, err := open(path)
		return repoOpenedMsg{gen: gen, path: path, repo: repo, err: err}
	}
}

func checkHeadCmd(ctx context.Context, gen int, repo Repo, manual bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, gitTimeout)
		defer cancel()

		hash, err := repo.HeadHash(ctx)
		if err != nil {
			return headMsg{gen: gen, manual: manual, err: err}
		}
		ahead, remoteErr := repo.RemoteAhead(ctx)
		return headMsg{gen: gen, hash: hash, remoteAhead: ahead, remoteErr: remoteErr, manual: manual}
	}
}

func reviewCmd(ctx context.Context, gen int, repo Repo, reviewer review.Reviewer, hash string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		gitCtx, cancel := context.WithTimeout(ctx, gitTimeout)
		commit, err := repo.Commit(gitCtx, hash)
		cancel()
		if err != nil {
			return reviewMsg{gen: gen, hash: hash, err: err}
		}

		reviewCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		result, err := reviewer.Review(reviewCtx, commit)
		return reviewMsg{gen: gen, hash: hash, commit: commit, result: result, err: err}
	}
}

func refreshCmd(ctx context.Context, gen int, repo Repo, fetch bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, gitTimeout)
		defer cancel()

		var fetchErr error
		if fetch {
			fetchErr = repo.Fetch(ctx)
		}
		// reload even after a failed fetch to pick up local changes
		if err := repo.Reload(); err != nil && fetchErr == nil {
			fetchErr = err
		}
		return refreshedMsg{gen: gen, err: fetchErr}
	}
}

func pingCmd(ctx context.Context, reviewer review.Reviewer) tea.Cmd {
	p, ok := reviewer.(pinger)
	if !ok {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return pingMsg{err: p.Ping(ctx)}
	}
}

func waitForNotifyCmd(events <-chan struct{}) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		<-events
		return notifyMsg{}
	}
}

func waitForVersionCmd(notices <-chan string) tea.Cmd {
	if notices == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-notices
		if !ok {
			return nil
		}
		return versionMsg(v)
	}
}

func discoverCmd(candidates func() []string) tea.Cmd {
	if candidates == nil {
		return nil
	}
	return func() tea.Msg {
		return candidatesMsg(candidates())
	}
}

func copyCmd(write func(string) error, text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: write(text)}
	}
}
