// Package ui is the review window: a full-screen Bubble Tea program that
// polls the selected repository and shows the review of each new commit.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atinylittleshell/commitreview/internal/config"
	"github.com/atinylittleshell/commitreview/internal/gitrepo"
	"github.com/atinylittleshell/commitreview/internal/review"
	"github.com/atinylittleshell/commitreview/internal/watch"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// title, repository, status, two rules and help
const chromeHeight = 6

type phase int

const (
	phaseIdle phase = iota
	phaseChecking
	phaseRefreshing
	phaseReviewing
)

// Options wires the window to its collaborators.
type Options struct {
	Context  context.Context
	Config   *config.Config
	RepoPath string

	Open     OpenFunc
	Reviewer review.Reviewer
	Notifier Notifier

	// Candidates lists repositories offered by the selector.
	Candidates func() []string
	// ExpandPath resolves ~ and $VARS in typed paths.
	ExpandPath func(string) (string, error)
	Clipboard  func(string) error

	// UpdateNotices delivers a newer release version, if any.
	UpdateNotices <-chan string
	Notice        string

	Version string
	Logger  *zap.Logger
	Now     func() time.Time
}

// Model is the window state. Every field is owned by the Update loop.
type Model struct {
	ctx        context.Context
	cfg        *config.Config
	open       OpenFunc
	reviewer   review.Reviewer
	notifier   Notifier
	candidates func() []string
	expand     func(string) (string, error)
	copyText   func(string) error
	notices    <-chan string
	logger     *zap.Logger
	now        func() time.Time
	version    string

	keys      KeyMap
	help      help.Model
	viewport  viewport.Model
	indicator LLMIndicator
	selector  selector

	width  int
	height int

	initialPath string
	repo        Repo
	repoPath    string
	branch      string

	// gen invalidates results of work started for a previous repository.
	gen   int
	phase phase

	detector   *watch.Detector
	seeded     bool
	failedHash string
	reviewing  string

	result    *review.Result
	reviewErr error
	lastCheck time.Time

	status      string
	statusKind  statusKind
	remoteAhead bool
	notice      string
}

// New creates the window model.
func New(opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	expand := opts.ExpandPath
	if expand == nil {
		expand = func(p string) (string, error) { return p, nil }
	}

	m := &Model{
		ctx:         ctx,
		cfg:         cfg,
		open:        opts.Open,
		reviewer:    opts.Reviewer,
		notifier:    opts.Notifier,
		candidates:  opts.Candidates,
		expand:      expand,
		copyText:    copyFn,
		notices:     opts.UpdateNotices,
		logger:      logger,
		now:         now,
		version:     opts.Version,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		viewport:    viewport.New(80, 20),
		indicator:   NewLLMIndicator(cfg.Model),
		selector:    newSelector(),
		width:       80,
		height:      20 + chromeHeight,
		initialPath: opts.RepoPath,
		detector:    watch.NewDetector(),
		notice:      opts.Notice,
	}
	if m.initialPath == "" {
		m.selector.active = true
		m.setStatus(statusInfo, "choose a repository to watch")
	}
	m.renderContent()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.cfg.PollInterval()),
		pingCmd(m.ctx, m.reviewer),
		discoverCmd(m.candidates),
		waitForVersionCmd(m.notices),
	}
	if m.notifier != nil {
		cmds = append(cmds, waitForNotifyCmd(m.notifier.Events()))
	}
	if m.initialPath != "" {
		cmds = append(cmds, m.selectRepository(m.initialPath))
	} else {
		cmds = append(cmds, m.selector.open(""))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.selector.active {
			return m, m.handleSelectorKey(msg)
		}
		return m, m.handleKey(msg)

	case tickMsg:
		return m, tea.Batch(m.startCheck(false), tickCmd(m.cfg.PollInterval()))

	case notifyMsg:
		m.logger.Debug("refs changed on disk")
		var events <-chan struct{}
		if m.notifier != nil {
			events = m.notifier.Events()
		}
		return m, tea.Batch(m.startCheck(false), waitForNotifyCmd(events))

	case repoOpenedMsg:
		return m, m.handleRepoOpened(msg)

	case headMsg:
		return m, m.handleHead(msg)

	case reviewMsg:
		return m, m.handleReview(msg)

	case refreshedMsg:
		return m, m.handleRefreshed(msg)

	case pingMsg:
		m.handlePing(msg)
		return m, nil

	case candidatesMsg:
		m.selector.setCandidates(msg)
		return m, nil

	case versionMsg:
		m.notice = fmt.Sprintf("commitreview %s is available", string(msg))
		return m, waitForVersionCmd(m.notices)

	case copiedMsg:
		if msg.err != nil {
			m.setStatus(statusError, fmt.Sprintf("copy failed: %v", msg.err))
		} else {
			m.setStatus(statusSuccess, "review copied to clipboard")
		}
		return m, nil

	case spinner.TickMsg:
		return m, m.indicator.Update(msg)
	}

	if m.selector.active {
		return m, m.selector.update(msg)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.CheckNow):
		return m.startCheck(true)
	case key.Matches(msg, m.keys.Refresh):
		return m.startRefresh()
	case key.Matches(msg, m.keys.Open):
		return m.selector.open(m.repoPath)
	case key.Matches(msg, m.keys.Copy):
		if m.result == nil {
			m.setStatus(statusWarn, "no review to copy")
			return nil
		}
		return copyCmd(m.copyText, m.result.Text)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

func (m *Model) handleSelectorKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case msg.String() == "ctrl+c":
		return tea.Quit
	case key.Matches(msg, m.keys.Cancel):
		m.selector.close()
		return nil
	case key.Matches(msg, m.keys.Up):
		m.selector.move(-1)
		return nil
	case key.Matches(msg, m.keys.Down):
		m.selector.move(1)
		return nil
	case key.Matches(msg, m.keys.Select):
		choice := m.selector.choice()
		if choice == "" {
			return nil
		}
		path, err := m.expand(choice)
		if err != nil {
			m.setStatus(statusError, fmt.Sprintf("invalid path: %v", err))
			return nil
		}
		m.selector.close()
		return m.selectRepository(path)
	}
	return m.selector.update(msg)
}

// selectRepository drops all state of the current repository and opens path.
func (m *Model) selectRepository(path string) tea.Cmd {
	m.gen++
	m.phase = phaseIdle
	m.repo = nil
	m.repoPath = path
	m.branch = ""
	m.detector.Reset()
	m.seeded = false
	m.failedHash = ""
	m.reviewing = ""
	m.result = nil
	m.reviewErr = nil
	m.remoteAhead = false
	m.indicator.SetStatus(LLMStatusIdle)
	m.setStatus(statusInfo, "opening "+path)
	m.renderContent()

	if m.open == nil {
		m.setStatus(statusError, "no repository opener configured")
		return nil
	}
	m.logger.Info("selecting repository", zap.String("path", path))
	return openRepoCmd(m.gen, path, m.open)
}

func (m *Model) handleRepoOpened(msg repoOpenedMsg) tea.Cmd {
	if msg.gen != m.gen {
		return nil
	}
	if msg.err != nil {
		m.logger.Warn("failed to open repository", zap.String("path", msg.path), zap.Error(msg.err))
		if errors.Is(msg.err, gitrepo.ErrNotRepository) {
			m.setStatus(statusError, fmt.Sprintf("%s is not a git repository", msg.path))
		} else {
			m.setStatus(statusError, fmt.Sprintf("could not open %s: %v", msg.path, msg.err))
		}
		m.renderContent()
		return m.selector.open(msg.path)
	}

	m.repo = msg.repo
	m.repoPath = msg.repo.Root()
	m.branch = msg.repo.Branch()
	m.logger.Info("watching repository", zap.String("root", m.repoPath), zap.String("branch", m.branch))

	if m.notifier != nil {
		if err := m.notifier.Start(m.repoPath); err != nil {
			m.logger.Warn("file notifications unavailable, polling only", zap.Error(err))
		}
	}
	m.setStatus(statusInfo, "watching "+m.repoPath)
	m.renderContent()
	return m.startCheck(false)
}

// startCheck begins a HEAD poll unless other work is in flight.
func (m *Model) startCheck(manual bool) tea.Cmd {
	if m.repo == nil {
		if manual {
			m.setStatus(statusWarn, "no repository selected; press o to choose one")
		}
		return nil
	}
	if m.phase != phaseIdle {
		if manual {
			m.setStatus(statusInfo, "busy, try again in a moment")
		}
		return nil
	}
	m.phase = phaseChecking
	if manual {
		m.setStatus(statusInfo, "checking for new commits")
	}
	return checkHeadCmd(m.ctx, m.gen, m.repo, manual)
}

func (m *Model) startRefresh() tea.Cmd {
	if m.repo == nil {
		m.setStatus(statusWarn, "no repository selected; press o to choose one")
		return nil
	}
	if m.phase != phaseIdle {
		m.setStatus(statusInfo, "busy, try again in a moment")
		return nil
	}
	m.phase = phaseRefreshing
	m.setStatus(statusInfo, lo.Ternary(m.cfg.FetchOnRefresh, "fetching from origin", "reloading repository"))
	return refreshCmd(m.ctx, m.gen, m.repo, m.cfg.FetchOnRefresh)
}

func (m *Model) handleRefreshed(msg refreshedMsg) tea.Cmd {
	if msg.gen != m.gen {
		return nil
	}
	m.phase = phaseIdle
	m.branch = m.repo.Branch()
	if msg.err != nil {
		m.logger.Warn("refresh failed", zap.Error(msg.err))
		m.setStatus(statusWarn, fmt.Sprintf("refresh failed: %v", msg.err))
		return m.startCheck(false)
	}
	return m.startCheck(true)
}

func (m *Model) handleHead(msg headMsg) tea.Cmd {
	if msg.gen != m.gen {
		return nil
	}
	m.phase = phaseIdle
	m.lastCheck = m.now()

	if msg.err != nil {
		if errors.Is(msg.err, gitrepo.ErrNoCommits) {
			// an empty repository is the baseline; its first commit is new
			m.seeded = true
			m.setStatus(statusInfo, "repository has no commits yet")
			return nil
		}
		m.logger.Warn("failed to read HEAD", zap.Error(msg.err))
		m.setStatus(statusError, fmt.Sprintf("git: %v", msg.err))
		return nil
	}
	m.remoteAhead = msg.remoteAhead
	if msg.remoteErr != nil {
		m.logger.Debug("remote check failed", zap.Error(msg.remoteErr))
	}

	if !m.seeded {
		m.seeded = true
		if !m.cfg.ReviewOnStart {
			m.detector.Seed(msg.hash)
			m.setStatus(statusInfo, "waiting for commits after "+shortHash(msg.hash))
			return nil
		}
	}

	isNew := m.detector.Observe(msg.hash)
	// an explicit check may ask again for a commit whose review failed
	again := msg.manual && msg.hash == m.failedHash
	if !isNew && !again {
		if msg.manual {
			m.setStatus(statusInfo, "no new commits")
		}
		return nil
	}

	m.logger.Info("reviewing commit", zap.String("hash", msg.hash), zap.Bool("new", isNew))
	m.phase = phaseReviewing
	m.reviewing = msg.hash
	m.setStatus(statusInfo, "reviewing "+shortHash(msg.hash))
	return tea.Batch(
		m.indicator.Start(),
		reviewCmd(m.ctx, m.gen, m.repo, m.reviewer, msg.hash, m.cfg.RequestTimeout()),
	)
}

func (m *Model) handleReview(msg reviewMsg) tea.Cmd {
	if msg.gen != m.gen {
		return nil
	}
	m.phase = phaseIdle
	m.reviewing = ""

	if msg.err != nil {
		m.logger.Error("review failed", zap.String("hash", msg.hash), zap.Error(msg.err))
		m.failedHash = msg.hash
		m.reviewErr = msg.err
		m.indicator.SetStatus(LLMStatusError)
		m.setStatus(statusError, fmt.Sprintf("review of %s failed; press c to try again", shortHash(msg.hash)))
		m.renderContent()
		return nil
	}

	m.failedHash = ""
	m.reviewErr = nil
	m.result = msg.result
	m.indicator.SetStatus(LLMStatusSuccess)
	m.setStatus(statusSuccess, fmt.Sprintf("reviewed %s in %s", shortHash(msg.hash), msg.result.Duration.Round(100*time.Millisecond)))
	m.renderContent()
	m.viewport.GotoTop()
	return nil
}

func (m *Model) handlePing(msg pingMsg) {
	if msg.err == nil {
		m.logger.Debug("ollama reachable")
		return
	}
	m.logger.Warn("ollama check failed", zap.Error(msg.err))
	m.indicator.SetStatus(LLMStatusError)
	if errors.Is(msg.err, review.ErrModelMissing) {
		m.setStatus(statusError, fmt.Sprintf("model %s is not installed; run `ollama pull %s`", m.cfg.Model, m.cfg.Model))
		return
	}
	m.setStatus(statusError, msg.err.Error())
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.status = text
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = lo.Max([]int{height - chromeHeight, 1})
	m.help.Width = width
	m.renderContent()
}

func (m *Model) renderContent() {
	width := lo.Max([]int{m.viewport.Width, 20})

	var b strings.Builder
	switch {
	case m.reviewErr != nil:
		b.WriteString(ErrorStyle.Render("The review could not be generated."))
		b.WriteString("\n\n")
		b.WriteString(wrapText(m.reviewErr.Error(), width))
		if errors.Is(m.reviewErr, review.ErrModelMissing) {
			b.WriteString("\n\n")
			b.WriteString(DimStyle.Render("Install it with: ollama pull " + m.cfg.Model))
		}
	case m.result != nil:
		if c := m.result.Commit; c != nil {
			b.WriteString(HashStyle.Render(c.ShortHash) + " " + wrapText(c.Subject, lo.Max([]int{width - len(c.ShortHash) - 1, 10})))
			b.WriteString("\n")
			b.WriteString(DimStyle.Render(fmt.Sprintf("%s · %s · %s",
				c.Author, humanize.RelTime(c.When, m.now(), "ago", "from now"), m.result.Model)))
			b.WriteString("\n\n")
		}
		b.WriteString(wrapText(m.result.Text, width))
	case m.repo == nil && m.repoPath == "":
		b.WriteString(DimStyle.Render("No repository selected. Press o to choose one."))
	default:
		b.WriteString(DimStyle.Render("Waiting for a new commit..."))
	}
	m.viewport.SetContent(b.String())
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.titleLine())
	b.WriteString("\n")

	if m.selector.active {
		b.WriteString(m.statusLine())
		b.WriteString("\n\n")
		b.WriteString(m.selector.view(m.width))
		b.WriteString("\n\n")
		b.WriteString(m.help.View(selectorHelp(m.keys)))
		return b.String()
	}

	b.WriteString(m.repoLine())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.rule())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.rule())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) titleLine() string {
	line := TitleStyle.Render("Commit Review") + "  " + m.indicator.View()
	if m.version != "" {
		line += "  " + DimStyle.Render(m.version)
	}
	return ansi.Truncate(line, m.width, "…")
}

func (m *Model) repoLine() string {
	if m.repoPath == "" {
		return DimStyle.Render("no repository")
	}
	line := m.repoPath
	if m.branch != "" {
		line += " " + LabelStyle.Render("("+m.branch+")")
	}
	if !m.lastCheck.IsZero() {
		line += "  " + DimStyle.Render("checked "+humanize.RelTime(m.lastCheck, m.now(), "ago", "from now"))
	}
	return ansi.Truncate(line, m.width, "…")
}

func (m *Model) statusLine() string {
	parts := []string{}
	if m.status != "" {
		parts = append(parts, styledStatus(m.statusKind, m.status))
	}
	if m.remoteAhead {
		parts = append(parts, WarnStyle.Render("origin has new commits, press r to refresh"))
	}
	if m.notice != "" {
		parts = append(parts, SelectedStyle.Render(m.notice))
	}
	return ansi.Truncate(strings.Join(parts, "  "), m.width, "…")
}

func (m *Model) rule() string {
	return RuleStyle.Render(strings.Repeat("─", lo.Max([]int{m.width, 1})))
}

// ReviewText returns the last review exactly as the model produced it.
func (m *Model) ReviewText() string {
	if m.result == nil {
		return ""
	}
	return m.result.Text
}

// LastSeen returns the hash recorded by the detector.
func (m *Model) LastSeen() string {
	return m.detector.Last()
}

// Status returns the current status message without styling.
func (m *Model) Status() string {
	return m.status
}

// wrapText inserts line breaks for display. Words longer than width are
// broken hard.
func wrapText(s string, width int) string {
	return wrap.String(wordwrap.String(s, width), width)
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
