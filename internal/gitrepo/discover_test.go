package gitrepo

import (
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	mkRepo := func(rel string) string {
		dir := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(dir, 0755))
		_, err := git.PlainInit(dir, false)
		require.NoError(t, err)
		return dir
	}

	api := mkRepo("work/api")
	web := mkRepo("work/web")
	mkRepo("work/web/vendor/lib")
	mkRepo("node_modules/pkg")
	mkRepo("a/b/c/d/too-deep")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "notes"), 0755))

	got := Discover([]string{root, root, filepath.Join(root, "missing")}, 3)

	assert.Equal(t, []string{api, web}, got)
}

func TestIsRepository(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsRepository(dir))

	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	assert.True(t, IsRepository(dir))
}
