package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Runner abstracts executing git operations that go-git cannot do with the
// user's own credentials (network fetches through configured helpers).
type Runner interface {
	Run(ctx context.Context, root string, args ...string) (string, error)
}

// ExecRunner executes the configured git binary.
type ExecRunner struct {
	GitBin string
}

// NewExecRunner creates a runner for gitBin, or "git" from PATH when empty.
func NewExecRunner(gitBin string) *ExecRunner {
	if strings.TrimSpace(gitBin) == "" {
		gitBin = "git"
	}
	return &ExecRunner{GitBin: gitBin}
}

func (e *ExecRunner) Run(ctx context.Context, root string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, e.GitBin, args...)
	if strings.TrimSpace(root) != "" {
		cmd.Dir = root
	}
	// Never block on a credential prompt; the window has no terminal to answer it.
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")

	var out bytes.Buffer
	var errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(errb.String())
		if msg == "" {
			msg = strings.TrimSpace(out.String())
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", sanitizeArgs(args), redactTokens(msg))
	}
	return out.String(), nil
}

var (
	safeArgPattern   = regexp.MustCompile(`^[a-z][a-z-]*$`)
	urlCredentials   = regexp.MustCompile(`https?://[^\s@/]+@`)
	namedCredentials = regexp.MustCompile(`(?i)(token|secret|password|passwd|bearer)=[^\s]+`)
)

// sanitizeArgs returns a minimal, non-sensitive summary of the git operation.
// It keeps at most the first two subcommand tokens that look like safe words.
func sanitizeArgs(args []string) string {
	if len(args) == 0 {
		return "<no-args>"
	}
	safe := make([]string, 0, 2)
	for _, a := range args {
		if !safeArgPattern.MatchString(a) {
			// stop on first non-safe token to avoid leaking paths/urls
			break
		}
		safe = append(safe, a)
		if len(safe) == 2 {
			break
		}
	}
	if len(safe) == 0 {
		return "<redacted>"
	}
	return strings.Join(safe, " ")
}

// redactTokens removes obvious credential substrings from messages.
func redactTokens(s string) string {
	s = urlCredentials.ReplaceAllString(s, "https://<redacted>@")
	s = namedCredentials.ReplaceAllString(s, "$1=<redacted>")
	return s
}
