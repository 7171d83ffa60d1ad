package model

import (
	"fmt"
	"sort"
)

// HopKey addresses a routing entry: traffic at Node headed for Destination.
type HopKey struct {
	Node        NodeID
	Destination NodeID
}

// RouteGraph is the static routing table of a deployment, as declared by
// HOP(node, destination, next_hop) entries.
type RouteGraph struct {
	nodes  map[NodeID]struct{}
	hops   map[HopKey]NodeID
	routes map[NodeID]map[NodeID]struct{}
}

// NewRouteGraph returns an empty graph.
func NewRouteGraph() *RouteGraph {
	return &RouteGraph{
		nodes:  make(map[NodeID]struct{}),
		hops:   make(map[HopKey]NodeID),
		routes: make(map[NodeID]map[NodeID]struct{}),
	}
}

// AddNode registers a node without any hops.
func (g *RouteGraph) AddNode(id NodeID) {
	g.nodes[id] = struct{}{}
}

// AddHop records that node forwards traffic for destination via nextHop.
// All three nodes are registered.
func (g *RouteGraph) AddHop(node, destination, nextHop NodeID) {
	g.AddNode(node)
	g.AddNode(destination)
	g.AddNode(nextHop)

	if _, ok := g.routes[node]; !ok {
		g.routes[node] = make(map[NodeID]struct{})
	}
	g.routes[node][destination] = struct{}{}
	g.hops[HopKey{Node: node, Destination: destination}] = nextHop
}

// CanRoute reports whether source has a route entry for destination.
func (g *RouteGraph) CanRoute(source, destination NodeID) bool {
	_, ok := g.routes[source][destination]
	return ok
}

// NextHop returns the next hop from node towards destination.
func (g *RouteGraph) NextHop(node, destination NodeID) (NodeID, bool) {
	next, ok := g.hops[HopKey{Node: node, Destination: destination}]
	return next, ok
}

// Nodes returns all node ids in ascending order.
func (g *RouteGraph) Nodes() []NodeID {
	out := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GraphElement is one node or edge in the topology export.
type GraphElement struct {
	Group string            `json:"group"`
	Data  map[string]string `json:"data"`
}

// GraphExport is the node/edge form consumed by the topology view.
type GraphExport struct {
	Nodes []GraphElement `json:"nodes"`
	Edges []GraphElement `json:"edges"`
}

// Export renders the graph as nodes plus directed edges. An edge is emitted
// for every (node, next hop) pair and for every ordered node pair that has
// no explicit hop entry, so the view can always draw a link between any two
// radios.
func (g *RouteGraph) Export() GraphExport {
	type pair struct{ from, to NodeID }
	edges := make(map[pair]struct{})
	for key, next := range g.hops {
		edges[pair{from: key.Node, to: next}] = struct{}{}
	}
	nodes := g.Nodes()
	for _, a := range nodes {
		for _, b := range nodes {
			if a == b {
				continue
			}
			if _, ok := g.hops[HopKey{Node: a, Destination: b}]; !ok {
				edges[pair{from: a, to: b}] = struct{}{}
			}
		}
	}

	ordered := make([]pair, 0, len(edges))
	for e := range edges {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].from != ordered[j].from {
			return ordered[i].from < ordered[j].from
		}
		return ordered[i].to < ordered[j].to
	})

	out := GraphExport{
		Nodes: make([]GraphElement, 0, len(nodes)),
		Edges: make([]GraphElement, 0, len(ordered)),
	}
	for _, id := range nodes {
		out.Nodes = append(out.Nodes, GraphElement{
			Group: "nodes",
			Data:  map[string]string{"id": fmt.Sprintf("n%d", id)},
		})
	}
	for i, e := range ordered {
		out.Edges = append(out.Edges, GraphElement{
			Group: "edges",
			Data: map[string]string{
				"id":     fmt.Sprintf("e%d", i),
				"source": fmt.Sprintf("n%d", e.from),
				"target": fmt.Sprintf("n%d", e.to),
			},
		})
	}
	return out
}
