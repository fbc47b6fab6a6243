package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestNew(t *testing.T) {
	root := t.TempDir()

	layout, err := New(root, "blog")
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(layout.Dir))
	assert.Equal(t, filepath.Join(root, "blog", "tmp", "dump", "seed.sql"), layout.DumpFile())
	assert.Equal(t, filepath.Join(root, "blog", "content"), layout.ContentDir())

	for _, name := range []string{"", ".", "..", "a/b"} {
		_, err = New(root, name)
		assert.Error(t, err, name)
	}
}

func TestLayout_Prepare(t *testing.T) {
	src := t.TempDir()
	dump := filepath.Join(src, "backup.sql")
	writeFile(t, dump, "CREATE TABLE wp_users (ID int);")

	layout, err := New(t.TempDir(), "blog")
	require.NoError(t, err)

	// Stale scripts from a previous run are removed.
	writeFile(t, filepath.Join(layout.SetupScriptsDir(), "stale.sql"), "DROP DATABASE wordpress;")

	err = layout.Prepare(dump, map[string][]byte{"add_known_admin.sql": []byte("SET SESSION sql_mode='';")})
	require.NoError(t, err)

	for _, dir := range []string{layout.MySQLDir(), layout.DumpDir(), layout.SQLScriptsDir(), layout.SetupScriptsDir(), layout.ContentDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}

	seed, err := os.ReadFile(layout.DumpFile())
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE wp_users (ID int);", string(seed))

	script, err := os.ReadFile(filepath.Join(layout.SetupScriptsDir(), "add_known_admin.sql"))
	require.NoError(t, err)
	assert.Equal(t, "SET SESSION sql_mode='';", string(script))

	assert.NoFileExists(t, filepath.Join(layout.SetupScriptsDir(), "stale.sql"))

	for _, path := range []string{layout.DumpFile(), layout.SetupScriptsDir(), layout.ContentDir()} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, Mode, info.Mode().Perm(), path)
	}
}

func TestLayout_Prepare_ContentModeIgnoresUmask(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "backup.sql")
	writeFile(t, dump, "SELECT 1;")

	layout, err := New(t.TempDir(), "blog")
	require.NoError(t, err)

	// A content dir left by an earlier run with restrictive permissions.
	require.NoError(t, os.MkdirAll(layout.ContentDir(), 0o700))
	require.NoError(t, os.Chmod(layout.ContentDir(), 0o700))

	require.NoError(t, layout.Prepare(dump, nil))

	info, err := os.Stat(layout.ContentDir())
	require.NoError(t, err)
	assert.Equal(t, Mode, info.Mode().Perm())
}

func TestLayout_Prepare_MissingDump(t *testing.T) {
	layout, err := New(t.TempDir(), "blog")
	require.NoError(t, err)

	assert.Error(t, layout.Prepare(filepath.Join(t.TempDir(), "absent.sql"), nil))
}

func TestLayout_MaterializeContent_Copy(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, "plugins", "hello", "hello.php"), "<?php")
	writeFile(t, filepath.Join(repo, "themes", "twentysixteen", "style.css"), "body{}")

	layout, err := New(t.TempDir(), "blog")
	require.NoError(t, err)
	writeFile(t, filepath.Join(layout.ContentDir(), "old.txt"), "old")

	require.NoError(t, layout.MaterializeContent(repo, false))

	assert.FileExists(t, filepath.Join(layout.ContentDir(), "plugins", "hello", "hello.php"))
	assert.FileExists(t, filepath.Join(layout.ContentDir(), "themes", "twentysixteen", "style.css"))
	assert.NoFileExists(t, filepath.Join(layout.ContentDir(), "old.txt"))

	info, err := os.Lstat(layout.ContentDir())
	require.NoError(t, err)
	assert.Zero(t, info.Mode()&os.ModeSymlink)
	assert.Equal(t, Mode, info.Mode().Perm())
}

func TestLayout_MaterializeContent_Symlink(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, "plugins", "hello.php"), "<?php")

	layout, err := New(t.TempDir(), "blog")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(layout.ContentDir(), 0o755))

	require.NoError(t, layout.MaterializeContent(repo, true))

	target, err := os.Readlink(layout.ContentDir())
	require.NoError(t, err)
	assert.Equal(t, repo, target)
	assert.FileExists(t, filepath.Join(layout.ContentDir(), "plugins", "hello.php"))
}

func TestLayout_MaterializeContent_Rejected(t *testing.T) {
	layout, err := New(t.TempDir(), "blog")
	require.NoError(t, err)

	err = layout.MaterializeContent("https://github.com/acme/wp-content.git", false)
	assert.True(t, errors.Is(err, ErrRemoteContent))

	file := filepath.Join(t.TempDir(), "plugin.zip")
	writeFile(t, file, "PK")
	assert.Error(t, layout.MaterializeContent(file, false))

	assert.Error(t, layout.MaterializeContent(filepath.Join(t.TempDir(), "absent"), false))
}
