package fs

import (
	"os"
	"path/filepath"
	"strings"
)

// TreeNode is one entry of a rendered directory listing.
type TreeNode struct {
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	IsDir     bool        `json:"is_dir"`
	IsSymlink bool        `json:"is_symlink,omitempty"`
	Size      int64       `json:"size,omitempty"`
	Truncated bool        `json:"truncated,omitempty"`
	Children  []*TreeNode `json:"children,omitempty"`
}

// TreeOptions bounds how much of a tree BuildTree loads.
type TreeOptions struct {
	MaxDepth   int  // 0 means unlimited
	MaxEntries int  // per directory, 0 means unlimited
	ShowHidden bool // include dot entries
}

// BuildTree loads the directory tree rooted at root. Children are sorted
// directories first, then by name. Symlinks are listed but never followed.
func BuildTree(root string, opts TreeOptions) (*TreeNode, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return nil, err
	}

	node := &TreeNode{
		Name:  filepath.Base(root),
		Path:  root,
		IsDir: info.IsDir(),
		Size:  info.Size(),
	}
	if !node.IsDir {
		node.IsSymlink = info.Mode()&os.ModeSymlink != 0
		return node, nil
	}

	if err := loadTree(node, 1, opts); err != nil {
		return nil, err
	}
	return node, nil
}

func loadTree(node *TreeNode, depth int, opts TreeOptions) error {
	if opts.MaxDepth > 0 && depth > opts.MaxDepth {
		node.Truncated = true
		return nil
	}

	entries, err := SortedEntries(node.Path)
	if err != nil {
		return err
	}

	var dirs, files []*TreeNode
	for _, entry := range entries {
		name := entry.Name()
		if !opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}

		isSymlink := entry.Type()&os.ModeSymlink != 0
		child := &TreeNode{
			Name:      name,
			Path:      filepath.Join(node.Path, name),
			IsDir:     entry.IsDir() && !isSymlink,
			IsSymlink: isSymlink,
		}
		if child.IsDir {
			dirs = append(dirs, child)
		} else {
			if info, err := entry.Info(); err == nil {
				child.Size = info.Size()
			}
			files = append(files, child)
		}
	}

	children := append(dirs, files...)
	if opts.MaxEntries > 0 && len(children) > opts.MaxEntries {
		children = children[:opts.MaxEntries]
		node.Truncated = true
	}
	node.Children = children

	for _, child := range node.Children {
		if !child.IsDir {
			continue
		}
		// Unreadable subdirectories are shown empty rather than failing the listing.
		if err := loadTree(child, depth+1, opts); err != nil {
			child.Children = nil
		}
	}
	return nil
}

// Count returns the number of directories and files below node.
func (n *TreeNode) Count() (dirs, files int) {
	for _, child := range n.Children {
		if child.IsDir {
			dirs++
			d, f := child.Count()
			dirs += d
			files += f
		} else {
			files++
		}
	}
	return dirs, files
}
