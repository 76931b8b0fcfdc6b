package workspace

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	"gitlab.com/tozd/go/errors"

	ifs "github.com/tormodhaugland/intake/internal/fs"
)

// copyStats counts what was written. Files covers regular files and
// recreated symlinks; Links counts the symlinks alone.
type copyStats struct {
	Files int
	Links int
	Dirs  int
	Bytes int64
}

type copyTask struct {
	src, dst string
	root     bool
}

type dirFixup struct {
	path    string
	mode    os.FileMode
	modTime time.Time
}

// copyTree copies src to dst depth-first using an explicit work stack, so
// tree depth never grows the goroutine stack. Children are visited in
// lexicographic order. A symlink given as src itself is followed; symlinks
// found inside a directory are recreated as links. Nothing is ever
// overwritten: dst and everything below it must not exist yet.
//
// On error the partial copy is left in place.
func copyTree(src, dst string) (copyStats, error) {
	var stats copyStats
	var fixups []dirFixup

	stack := []copyTask{{src: src, dst: dst, root: true}}
	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var info os.FileInfo
		var err error
		if task.root {
			info, err = os.Stat(task.src)
		} else {
			info, err = os.Lstat(task.src)
		}
		if err != nil {
			return stats, &CopyError{Op: "stat", Path: task.src, Err: err}
		}

		mode := info.Mode()
		switch {
		case mode.IsDir():
			// Owner write is needed while children are created; the real
			// mode is restored once the whole tree is done.
			if err := os.Mkdir(task.dst, mode.Perm()|0o700); err != nil {
				return stats, &CopyError{Op: "mkdir", Path: task.dst, Err: err}
			}
			stats.Dirs++
			fixups = append(fixups, dirFixup{path: task.dst, mode: mode.Perm(), modTime: info.ModTime()})

			entries, err := ifs.SortedEntries(task.src)
			if err != nil {
				return stats, &CopyError{Op: "readdir", Path: task.src, Err: err}
			}
			for i := len(entries) - 1; i >= 0; i-- {
				name := entries[i].Name()
				stack = append(stack, copyTask{
					src: filepath.Join(task.src, name),
					dst: filepath.Join(task.dst, name),
				})
			}

		case mode.IsRegular():
			n, err := copyFile(task.src, task.dst, info)
			stats.Bytes += n
			if err != nil {
				return stats, err
			}
			stats.Files++

		case mode&os.ModeSymlink != 0:
			if err := copySymlink(task.src, task.dst); err != nil {
				return stats, err
			}
			stats.Files++
			stats.Links++

		default:
			return stats, &CopyError{
				Op:   "copy",
				Path: task.src,
				Err:  errors.Errorf("unsupported file type %s", mode.Type()),
			}
		}
	}

	// Deepest directories first so restoring a parent's mode or mtime is
	// not undone by work on its children.
	for i := len(fixups) - 1; i >= 0; i-- {
		f := fixups[i]
		if err := os.Chmod(f.path, f.mode); err != nil {
			return stats, &CopyError{Op: "chmod", Path: f.path, Err: err}
		}
		if err := os.Chtimes(f.path, f.modTime, f.modTime); err != nil {
			return stats, &CopyError{Op: "chtimes", Path: f.path, Err: err}
		}
	}

	return stats, nil
}

func copyFile(src, dst string, info os.FileInfo) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, &CopyError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return 0, &CopyError{Op: "create", Path: dst, Err: err}
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, &CopyError{Op: "copy", Path: src, Err: err}
	}
	if err := out.Close(); err != nil {
		return n, &CopyError{Op: "close", Path: dst, Err: err}
	}

	// OpenFile is subject to the umask.
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return n, &CopyError{Op: "chmod", Path: dst, Err: err}
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return n, &CopyError{Op: "chtimes", Path: dst, Err: err}
	}
	return n, nil
}

func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return &CopyError{Op: "readlink", Path: src, Err: err}
	}
	if err := os.Symlink(target, dst); err != nil {
		return &CopyError{Op: "symlink", Path: dst, Err: err}
	}
	return nil
}

// verifyTree compares every regular file under src with its counterpart
// under dst by blake3 digest.
func verifyTree(src, dst string) error {
	root, err := filepath.EvalSymlinks(src)
	if err != nil {
		return &CopyError{Op: "verify", Path: src, Err: err}
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &CopyError{Op: "verify", Path: path, Err: err}
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return &CopyError{Op: "verify", Path: path, Err: err}
		}
		target := filepath.Join(dst, rel)

		want, err := hashFile(path)
		if err != nil {
			return &CopyError{Op: "verify", Path: path, Err: err}
		}
		got, err := hashFile(target)
		if err != nil {
			return &CopyError{Op: "verify", Path: target, Err: err}
		}
		if !bytes.Equal(want, got) {
			return &CopyError{Op: "verify", Path: target, Err: ErrChecksumMismatch}
		}
		return nil
	})
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
