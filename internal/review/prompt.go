package review

import (
	"fmt"
	"strings"

	"github.com/atinylittleshell/commitreview/internal/gitrepo"
)

// DefaultSystemPrompt is the reviewer persona sent with every request.
const DefaultSystemPrompt = `You are a professional software developer. I am showing you the code and message of one of my commits.
Critique it and tell me how to improve it based on common norms.
Keep the feedback short and simple, format it so it is easy to read, and put a blank line between each point.`

// BuildPrompt assembles the user message for a commit: its diff followed by
// its message.
func BuildPrompt(c *gitrepo.Commit) string {
	var b strings.Builder

	diff := strings.TrimRight(c.Diff, "\n")
	if diff == "" {
		diff = "(this commit changes no file contents)"
	}

	b.WriteString("This is my commit:\n\n```diff\n")
	b.WriteString(diff)
	b.WriteString("\n```\n")
	if c.Truncated {
		b.WriteString("\nThe diff above was cut short because it is large; review what is shown.\n")
	}

	b.WriteString("\nAnd this is my commit message:\n\n")
	b.WriteString(strings.TrimSpace(c.Message))
	b.WriteString("\n")

	if len(c.Stats) > 0 {
		b.WriteString(fmt.Sprintf("\n(%d files changed, %s)\n", len(c.Stats), statSummary(c.Stats)))
	}

	return b.String()
}

func statSummary(stats []gitrepo.FileStat) string {
	added, removed := 0, 0
	for _, s := range stats {
		added += s.Added
		removed += s.Removed
	}
	return fmt.Sprintf("+%d -%d", added, removed)
}
