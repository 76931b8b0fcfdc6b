package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tormodhaugland/intake/internal/fs"
	"github.com/tormodhaugland/intake/internal/logging"
	"github.com/tormodhaugland/intake/internal/service"
	"github.com/tormodhaugland/intake/internal/tui"
	"github.com/tormodhaugland/intake/internal/workspace"
)

var (
	treeDepth      int
	treeMaxEntries int
	treeAll        bool
)

var treeCmd = &cobra.Command{
	Use:   "tree [dir]",
	Short: "Show the contents of the data root",
	Long: `Renders the directory tree under the data root, or under a directory
relative to it. The _system directory is hidden unless --all is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log := logging.Nop()
		svc, err := newService(cfg, &log, workspace.Options{}, service.Options{})
		if err != nil {
			return err
		}

		rel := ""
		if len(args) > 0 {
			rel = args[0]
		}
		dir, err := svc.ResolveTarget(rel)
		if err != nil {
			return err
		}

		node, err := fs.BuildTree(dir, fs.TreeOptions{
			MaxDepth:   treeDepth,
			MaxEntries: treeMaxEntries,
			ShowHidden: treeAll,
		})
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", dir, err)
		}
		if !treeAll && dir == svc.DataRoot() {
			node.Children = withoutSystemDir(node.Children)
		}

		if jsonOut {
			return outputJSON(node)
		}
		fmt.Println(tui.RenderTree(node))
		return nil
	},
}

func withoutSystemDir(children []*fs.TreeNode) []*fs.TreeNode {
	out := children[:0:0]
	for _, c := range children {
		if c.IsDir && c.Name == "_system" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func init() {
	treeCmd.Flags().IntVarP(&treeDepth, "depth", "L", 3, "maximum depth to descend (0 for unlimited)")
	treeCmd.Flags().IntVar(&treeMaxEntries, "max-entries", 200, "maximum entries shown per directory (0 for unlimited)")
	treeCmd.Flags().BoolVarP(&treeAll, "all", "a", false, "include hidden entries and the _system directory")
	rootCmd.AddCommand(treeCmd)
}
