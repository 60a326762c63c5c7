package review

import (
	"strings"
	"testing"

	"github.com/atinylittleshell/commitreview/internal/gitrepo"
	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	c := &gitrepo.Commit{
		Message: "Add retry to uploader\n\nUploads failed on flaky networks.\n",
		Diff:    "diff --git a/up.go b/up.go\n+retry()\n",
		Stats:   []gitrepo.FileStat{{Path: "up.go", Added: 3, Removed: 1}, {Path: "up_test.go", Added: 10}},
	}

	got := BuildPrompt(c)

	assert.True(t, strings.HasPrefix(got, "This is my commit:"))
	assert.Contains(t, got, "```diff\ndiff --git a/up.go b/up.go\n+retry()\n```")
	assert.Contains(t, got, "And this is my commit message:\n\nAdd retry to uploader\n\nUploads failed on flaky networks.\n")
	assert.Contains(t, got, "(2 files changed, +13 -1)")
	assert.NotContains(t, got, "cut short")

	diffAt := strings.Index(got, "+retry()")
	messageAt := strings.Index(got, "Add retry to uploader")
	assert.Less(t, diffAt, messageAt, "diff comes before the message")
}

func TestBuildPrompt_TruncatedAndEmpty(t *testing.T) {
	got := BuildPrompt(&gitrepo.Commit{Message: "big change", Diff: "+x\n", Truncated: true})
	assert.Contains(t, got, "cut short")

	got = BuildPrompt(&gitrepo.Commit{Message: "mode change only"})
	assert.Contains(t, got, "(this commit changes no file contents)")
	assert.NotContains(t, got, "files changed")
}
