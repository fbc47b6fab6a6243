// Package workspace lays out the host directories bind mounted into the containers.
package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"
	"github.com/pkg/errors"
)

// DumpFileName is the name of the dump copy inside DumpDir.
const DumpFileName = "seed.sql"

// Mode is applied to the whole tree so that container users can read and write it.
const Mode fs.FileMode = 0o777

var ErrRemoteContent = errors.New("remote content repositories are not supported")

// Layout is the directory tree of a single environment:
//
//	<root>/<name>/
//	    tmp/mysql
//	    tmp/dump/seed.sql
//	    tmp/sql_scripts
//	    tmp/setup_scripts
//	    content
type Layout struct {
	Dir string
}

// New returns the layout of the named environment under root.
// The resulting path is absolute, as required by bind mounts.
func New(root, name string) (Layout, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return Layout{}, errors.Errorf("invalid environment name %q", name)
	}

	dir, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return Layout{}, errors.Wrap(err, "failed to resolve workspace directory")
	}

	return Layout{Dir: dir}, nil
}

func (l Layout) TmpDir() string          { return filepath.Join(l.Dir, "tmp") }
func (l Layout) MySQLDir() string        { return filepath.Join(l.TmpDir(), "mysql") }
func (l Layout) DumpDir() string         { return filepath.Join(l.TmpDir(), "dump") }
func (l Layout) SQLScriptsDir() string   { return filepath.Join(l.TmpDir(), "sql_scripts") }
func (l Layout) SetupScriptsDir() string { return filepath.Join(l.TmpDir(), "setup_scripts") }
func (l Layout) ContentDir() string      { return filepath.Join(l.Dir, "content") }
func (l Layout) DumpFile() string        { return filepath.Join(l.DumpDir(), DumpFileName) }

// Prepare creates the tree, copies the dump and replaces the setup scripts with the given ones.
// Files of existing content are left untouched, only the content directory mode is reset.
func (l Layout) Prepare(dumpPath string, setupScripts map[string][]byte) error {
	for _, dir := range []string{l.MySQLDir(), l.DumpDir(), l.SQLScriptsDir(), l.ContentDir()} {
		if err := os.MkdirAll(dir, Mode); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	if err := copy.Copy(dumpPath, l.DumpFile()); err != nil {
		return errors.Wrap(err, "failed to copy the dump")
	}

	if err := os.RemoveAll(l.SetupScriptsDir()); err != nil {
		return errors.Wrap(err, "failed to clean setup scripts")
	}
	if err := os.MkdirAll(l.SetupScriptsDir(), Mode); err != nil {
		return errors.Wrap(err, "failed to create setup scripts directory")
	}

	for name, body := range setupScripts {
		path := filepath.Join(l.SetupScriptsDir(), filepath.Base(name))
		if err := os.WriteFile(path, body, Mode); err != nil {
			return errors.Wrapf(err, "failed to write setup script %s", name)
		}
	}

	if err := chmodTree(l.TmpDir()); err != nil {
		return err
	}

	// A symlinked content dir points at the operator's repository, its modes are left alone.
	info, err := os.Lstat(l.ContentDir())
	if err != nil {
		return errors.Wrap(err, "failed to stat content directory")
	}
	if info.IsDir() {
		if err := os.Chmod(l.ContentDir(), Mode); err != nil {
			return errors.Wrap(err, "failed to chmod content directory")
		}
	}

	return nil
}

// MaterializeContent puts a local content repository into the content directory,
// either as a copy or as a symbolic link. The previous content is replaced.
func (l Layout) MaterializeContent(source string, symlink bool) error {
	if strings.HasPrefix(source, "http") {
		return errors.Wrap(ErrRemoteContent, source)
	}

	source, err := filepath.Abs(source)
	if err != nil {
		return errors.Wrap(err, "failed to resolve content path")
	}

	info, err := os.Stat(source)
	if err != nil {
		return errors.Wrap(err, "content repository is unavailable")
	}
	if !info.IsDir() {
		return errors.Errorf("content repository %s is not a directory", source)
	}

	if err = os.RemoveAll(l.ContentDir()); err != nil {
		return errors.Wrap(err, "failed to clean content directory")
	}

	if symlink {
		return errors.Wrap(os.Symlink(source, l.ContentDir()), "failed to link content")
	}

	err = copy.Copy(source, l.ContentDir(), copy.Options{
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Deep
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to copy content")
	}

	return chmodTree(l.ContentDir())
}

func chmodTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		return os.Chmod(path, Mode)
	})

	return errors.Wrapf(err, "failed to chmod %s", root)
}
