package dag

// Graph is a directed graph of resource names where an edge from A to B means
// "A requires B". Nodes keep insertion order so traversal, and therefore any
// reported cycle, is deterministic.
type Graph struct {
	// order lists node IDs in the order they were first added.
	order []string
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
}

// node is a single vertex. It is un-exported so callers work with string IDs.
type node struct {
	id string
	// requires lists successors in edge insertion order.
	requires []*node
	// seen guards against parallel edges.
	seen map[string]struct{}
}
