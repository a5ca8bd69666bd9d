package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/xylem/pkg/centerline"
)

var topologyJSON bool

var topologyCmd = &cobra.Command{
	Use:   "topology <centerline>",
	Short: "Reconstruct and print the branch tree of a centerline",
	Long:  "Read a centerline (.vtp or .json), build its branch tree and print each branch with its parent link, or the whole tree as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopology,
}

func init() {
	topologyCmd.Flags().BoolVar(&topologyJSON, "json", false, "print the tree as JSON")
	rootCmd.AddCommand(topologyCmd)
}

func runTopology(cmd *cobra.Command, args []string) error {
	tree, err := centerline.Load(args[0], cfg.RadiusArray, cfg.CenterlineOptions())
	if err != nil {
		return err
	}
	if topologyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	}

	fmt.Printf("Branches: %d\n", tree.Len())
	if len(tree.Dropped) > 0 {
		fmt.Printf("Dropped paths: %v\n", tree.Dropped)
	}
	for _, b := range tree.Branches() {
		parent := "root"
		if link, ok := b.Link(); ok {
			parent = fmt.Sprintf("branch %d at %d", link.Parent, link.Split)
		}
		fmt.Printf("  %d: %d samples, %.2f mm, parent %s, children %v\n",
			b.ID, b.Len(), b.Span(), parent, tree.Children(b.ID))
	}
	return nil
}
