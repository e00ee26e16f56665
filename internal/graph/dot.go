package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// DOTOptions controls WriteDOT output.
type DOTOptions struct {
	// Name is the digraph identifier. Defaults to "modules".
	Name string
	// Externals adds system library references as note-shaped nodes.
	Externals bool
}

// WriteDOT renders the graph in Graphviz DOT syntax. Hard edges are solid,
// advisory edges dashed. Output is sorted and stable.
func (g *DependencyGraph) WriteDOT(w io.Writer, opts DOTOptions) error {
	name := opts.Name
	if name == "" {
		name = "modules"
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", strconv.Quote(name))
	fmt.Fprintln(bw, "  rankdir=LR;")
	fmt.Fprintln(bw, "  node [shape=box];")
	for _, id := range g.names {
		node := g.nodes[id]
		fmt.Fprintf(bw, "  %s [label=%s];\n", strconv.Quote(id), strconv.Quote(fmt.Sprintf("%s\n(%s)", id, node.Module.Kind)))
	}
	for _, edge := range g.edges {
		style := ""
		if edge.Kind.Advisory() {
			style = " [style=dashed]"
		} else if edge.Kind == EdgePrivate {
			style = " [color=gray40]"
		}
		fmt.Fprintf(bw, "  %s -> %s%s;\n", strconv.Quote(edge.From), strconv.Quote(edge.To), style)
	}
	if opts.Externals {
		for _, id := range g.names {
			for _, ext := range g.nodes[id].Externals {
				fmt.Fprintf(bw, "  %s [shape=note];\n", strconv.Quote("ext:"+ext))
				fmt.Fprintf(bw, "  %s -> %s [style=dotted];\n", strconv.Quote(id), strconv.Quote("ext:"+ext))
			}
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
