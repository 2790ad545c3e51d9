// Command pumpedgraph renders a dependency graph exported from a Scope
// (see Scope.ExportDependencyGraph) without requiring a running process:
// export the graph to JSON alongside your service and inspect it later,
// or diff two snapshots to see what wiring changed between deploys.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/m1gwings/treedrawer/tree"
	"github.com/spf13/cobra"
)

var (
	Version string = "dev"

	graphFile string
	failedOn  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pumpedgraph",
	Short: "Inspect pumped dependency graphs outside a running process",
	Long: `pumpedgraph loads a dependency graph snapshot (as produced by
Scope.ExportDependencyGraph, serialized to JSON with NodeEdges) and renders
it as a tree, the same formatting the graph-debug extension logs on a
resolution failure.`,
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a graph snapshot as a dependency tree",
	Args:  cobra.NoArgs,
	RunE:  renderGraph,
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List every node name in a graph snapshot",
	Args:  cobra.NoArgs,
	RunE:  listNodes,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pumpedgraph %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&graphFile, "file", "f", "graph.json", "Path to a graph snapshot (JSON)")
	renderCmd.Flags().StringVar(&failedOn, "failed", "", "Mark this node as the failed executor")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(versionCmd)
}

// NodeEdges is the serialized form of a Scope's dependency graph: each
// entry names a node and the dependents it feeds into, the same shape
// Scope.ExportDependencyGraph returns keyed by executor identity rather
// than name.
type NodeEdges struct {
	Name      string   `json:"name"`
	Dependents []string `json:"dependents"`
	Resolved  bool     `json:"resolved,omitempty"`
}

func loadGraph(path string) ([]NodeEdges, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading graph file %s: %w", path, err)
	}
	var nodes []NodeEdges
	if err := json.Unmarshal(content, &nodes); err != nil {
		return nil, fmt.Errorf("error parsing graph file %s: %w", path, err)
	}
	return nodes, nil
}

func listNodes(cmd *cobra.Command, args []string) error {
	nodes, err := loadGraph(graphFile)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func renderGraph(cmd *cobra.Command, args []string) error {
	nodes, err := loadGraph(graphFile)
	if err != nil {
		return err
	}

	graph := make(map[string][]string, len(nodes))
	resolved := make(map[string]bool, len(nodes))
	allNodes := make(map[string]bool, len(nodes))
	parents := make(map[string][]string)

	for _, n := range nodes {
		allNodes[n.Name] = true
		graph[n.Name] = n.Dependents
		resolved[n.Name] = n.Resolved
		for _, dep := range n.Dependents {
			allNodes[dep] = true
			parents[dep] = append(parents[dep], n.Name)
		}
	}

	var roots []string
	for name := range allNodes {
		if len(parents[name]) == 0 {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)

	if len(roots) == 0 {
		fmt.Println("(empty graph)")
		return nil
	}

	var rootNode *tree.Tree
	if len(roots) == 1 {
		rootNode = buildNodeTree(roots[0], graph, resolved, make(map[string]bool))
	} else {
		rootNode = tree.NewTree(tree.NodeString("Dependencies"))
		for _, root := range roots {
			if childTree := buildNodeTree(root, graph, resolved, make(map[string]bool)); childTree != nil {
				addTreeAsChild(rootNode, childTree)
			}
		}
	}

	if rootNode == nil {
		fmt.Println("(empty graph)")
		return nil
	}
	fmt.Println(rootNode.String())
	return nil
}

func buildNodeTree(name string, graph map[string][]string, resolved map[string]bool, visited map[string]bool) *tree.Tree {
	if visited[name] {
		return nil
	}
	visited[name] = true

	label := name
	if name == failedOn {
		label += " FAILED"
	} else if resolved[name] {
		label += " ok"
	}

	node := tree.NewTree(tree.NodeString(label))

	children := make([]string, len(graph[name]))
	copy(children, graph[name])
	sort.Strings(children)
	for _, child := range children {
		if childTree := buildNodeTree(child, graph, resolved, visited); childTree != nil {
			addTreeAsChild(node, childTree)
		}
	}
	return node
}

func addTreeAsChild(parent *tree.Tree, child *tree.Tree) {
	newChild := parent.AddChild(child.Val())
	for _, grandchild := range child.Children() {
		addTreeAsChild(newChild, grandchild)
	}
}
