package relationship

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Graph is an in-memory view over a set of relationships, indexed by
// both endpoints for O(1) neighbor lookup. It never owns episode data;
// every node is just an id, fetched from storage on demand by callers
// that need the episode itself.
type Graph struct {
	edges []Relationship
	out   map[string][]Relationship
	in    map[string][]Relationship
}

// New builds a Graph over edges.
func New(edges []Relationship) *Graph {
	g := &Graph{
		edges: append([]Relationship(nil), edges...),
		out:   make(map[string][]Relationship, len(edges)),
		in:    make(map[string][]Relationship, len(edges)),
	}
	for _, e := range edges {
		g.out[e.From] = append(g.out[e.From], e)
		g.in[e.To] = append(g.in[e.To], e)
	}
	return g
}

// Edges returns every relationship in the graph.
func (g *Graph) Edges() []Relationship {
	return append([]Relationship(nil), g.edges...)
}

// Relationships returns the edges touching id in the given direction.
func (g *Graph) Relationships(id string, dir Direction) []Relationship {
	var out []Relationship
	if dir == DirectionOut || dir == DirectionBoth {
		out = append(out, g.out[id]...)
	}
	if dir == DirectionIn || dir == DirectionBoth {
		out = append(out, g.in[id]...)
	}
	return out
}

// Dependencies returns the ids id depends on (out edges of TypeDependsOn).
func (g *Graph) Dependencies(id string) []string {
	var ids []string
	for _, e := range g.out[id] {
		if e.Type == TypeDependsOn {
			ids = append(ids, e.To)
		}
	}
	return ids
}

// Dependents returns the ids that depend on id (in edges of TypeDependsOn).
func (g *Graph) Dependents(id string) []string {
	var ids []string
	for _, e := range g.in[id] {
		if e.Type == TypeDependsOn {
			ids = append(ids, e.From)
		}
	}
	return ids
}

// reachable returns the set of ids reachable from start by following
// out-edges of type t, not including start itself unless a cycle loops
// back to it.
func (g *Graph) reachable(start string, t Type) map[string]bool {
	seen := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.out[n] {
			if e.Type != t {
				continue
			}
			if seen[e.To] {
				continue
			}
			seen[e.To] = true
			stack = append(stack, e.To)
		}
	}
	return seen
}

// WouldCreateCycle reports whether adding a from->to edge of type t
// would close a cycle in that type's subgraph: true iff to can already
// reach from (or from == to), mirroring a depends-on check that walks
// forward from the proposed target to see if it loops back to the
// proposed source before the edge is ever inserted.
func (g *Graph) WouldCreateCycle(from, to string, t Type) bool {
	if from == to {
		return true
	}
	return g.reachable(to, t)[from]
}

// BuildSubgraph runs a bounded BFS from root over both edge directions
// and returns the subgraph of edges touching every node visited within
// maxDepth hops. maxDepth < 0 is treated as 0 (root only, no edges).
func (g *Graph) BuildSubgraph(root string, maxDepth int) *Graph {
	if maxDepth < 0 {
		maxDepth = 0
	}
	visited := map[string]int{root: 0}
	queue := []string{root}
	var collected []Relationship
	seenEdge := make(map[string]bool)

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		depth := visited[n]
		if depth >= maxDepth {
			continue
		}
		for _, e := range append(append([]Relationship{}, g.out[n]...), g.in[n]...) {
			key := e.ID
			if key == "" {
				key = e.From + "|" + e.To + "|" + string(e.Type)
			}
			if !seenEdge[key] {
				seenEdge[key] = true
				collected = append(collected, e)
			}
			other := e.To
			if other == n {
				other = e.From
			}
			if _, ok := visited[other]; !ok {
				visited[other] = depth + 1
				queue = append(queue, other)
			}
		}
	}
	return New(collected)
}

// TopologicalSort orders ids using Kahn's algorithm over the acyclic-type
// edges among them. It reports cyclic=true (and a nil order) if no full
// ordering exists. Edges whose endpoints are not both in ids are
// ignored. Since WouldCreateCycle checks each type's subgraph on its
// own, acyclic-type edges that each passed it can still close a loop
// across types (e.g. a DependsOn b plus b Blocks a), which is reported
// as cyclic here.
func TopologicalSort(ids []string, edges []Relationship) (order []string, cyclic bool) {
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}

	indegree := make(map[string]int, len(ids))
	adj := make(map[string][]string, len(ids))
	for _, id := range ids {
		indegree[id] = 0
	}
	for _, e := range edges {
		if !e.Type.Acyclic() {
			continue
		}
		if !inSet[e.From] || !inSet[e.To] {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
		indegree[e.To]++
	}

	var queue []string
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order = make([]string, 0, len(ids))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		var freed []string
		for _, m := range adj[n] {
			indegree[m]--
			if indegree[m] == 0 {
				freed = append(freed, m)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
		sort.Strings(queue)
	}

	if len(order) != len(ids) {
		return nil, true
	}
	return order, false
}

// ToDOT renders g as a Graphviz digraph, matching the wire format
// `digraph RelationshipGraph { "<id>" -> "<id>" [label="<Type>"]; ... }`.
func (g *Graph) ToDOT() string {
	var b strings.Builder
	b.WriteString("digraph RelationshipGraph {\n")
	for _, e := range g.edges {
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", e.From, e.To, e.Type)
	}
	b.WriteString("}\n")
	return b.String()
}

// jsonEdge is the trimmed edge shape ToJSON emits: endpoints and type
// only, not the full Relationship record (id, reason, priority,
// timestamps), matching the graph export's wire format.
type jsonEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type Type   `json:"type"`
}

// graphJSON is the wire shape ToJSON emits.
type graphJSON struct {
	NodeCount int        `json:"node_count"`
	EdgeCount int        `json:"edge_count"`
	Nodes     []string   `json:"nodes"`
	Edges     []jsonEdge `json:"edges"`
}

// ToJSON renders g as a {node_count, edge_count, nodes, edges} document.
func (g *Graph) ToJSON() ([]byte, error) {
	seen := make(map[string]bool)
	var nodes []string
	for _, e := range g.edges {
		for _, id := range [2]string{e.From, e.To} {
			if !seen[id] {
				seen[id] = true
				nodes = append(nodes, id)
			}
		}
	}
	sort.Strings(nodes)

	edges := make([]jsonEdge, len(g.edges))
	for i, e := range g.edges {
		edges[i] = jsonEdge{From: e.From, To: e.To, Type: e.Type}
	}

	return json.Marshal(graphJSON{
		NodeCount: len(nodes),
		EdgeCount: len(edges),
		Nodes:     nodes,
		Edges:     edges,
	})
}
