package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var graphDOT bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Describe the network structure",
	Long: `List every variable with its cardinality and parents in topological
order, or emit the DAG in Graphviz DOT form with --dot.`,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().BoolVar(&graphDOT, "dot", false, "print Graphviz DOT")
}

func runGraph(_ *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if graphDOT {
		fmt.Print(a.model.DOT())
		return nil
	}

	fmt.Printf("network %s: %d variables, %d edges\n\n", a.model.Name(), len(a.model.Variables()), len(a.model.Edges()))
	fmt.Printf("%-18s| %-5s| %s\n", "Variable", "Card", "Parents")
	fmt.Println(strings.Repeat("-", 50))
	for _, name := range a.model.TopologicalOrder() {
		v, _ := a.model.Variable(name)
		parents := strings.Join(a.model.Parents(name), ", ")
		if parents == "" {
			parents = "-"
		}
		fmt.Printf("%-18s| %-5d| %s\n", v.Name, v.Cardinality, parents)
	}
	return nil
}
