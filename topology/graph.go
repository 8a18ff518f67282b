package topology

import (
	"fmt"
	"strconv"

	nsview "github.com/frobware/go-nsview"
)

// NodeID identifies an interface across the whole host.
type NodeID struct {
	Namespace string `json:"ns"`
	Index     int    `json:"ifindex"`
}

// String returns the node name used in rendered output.
func (id NodeID) String() string {
	return id.Namespace + "-" + strconv.Itoa(id.Index)
}

// Node is one interface.
type Node struct {
	ID        NodeID   `json:"id"`
	Name      string   `json:"name"`
	Addresses []string `json:"addresses,omitempty"`
	Programs  []string `json:"programs,omitempty"`
}

// Cluster groups the nodes of one namespace.
type Cluster struct {
	Namespace string `json:"ns"`
	Nodes     []Node `json:"nodes"`
}

// EdgeClass says how the two ends of an edge are paired.
type EdgeClass string

const (
	// EdgeSameNamespace pairs two devices in one namespace by name.
	EdgeSameNamespace EdgeClass = "same-namespace"
	// EdgeCrossNamespace pairs devices through a relative namespace id.
	EdgeCrossNamespace EdgeClass = "cross-namespace"
)

// Edge is an undirected link between two nodes.
type Edge struct {
	From  NodeID    `json:"from"`
	To    NodeID    `json:"to"`
	Class EdgeClass `json:"class"`
}

// UnresolvedPeer is a peer reference that could not be resolved and
// was skipped.
type UnresolvedPeer struct {
	From   NodeID    `json:"from"`
	Class  EdgeClass `json:"class"`
	Reason string    `json:"reason"`
}

// Graph is the rendering-agnostic description of the topology.
type Graph struct {
	Clusters   []Cluster        `json:"clusters"`
	Edges      []Edge           `json:"edges"`
	Unresolved []UnresolvedPeer `json:"unresolved,omitempty"`
}

// NodeCount returns the number of nodes across all clusters.
func (g *Graph) NodeCount() int {
	n := 0
	for _, c := range g.Clusters {
		n += len(c.Nodes)
	}
	return n
}

func newNode(ns string, iface *nsview.Interface) Node {
	n := Node{
		ID:   NodeID{Namespace: ns, Index: iface.Index},
		Name: iface.Name,
	}
	for _, a := range iface.Addresses {
		n.Addresses = append(n.Addresses, a.String())
	}
	for _, p := range iface.Programs {
		n.Programs = append(n.Programs, p.String())
	}
	return n
}

// pairKey is an unordered pair of node ids.
type pairKey struct {
	a, b NodeID
}

func newPairKey(x, y NodeID) pairKey {
	if x.Namespace > y.Namespace || (x.Namespace == y.Namespace && x.Index > y.Index) {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -- %s (%s)", e.From, e.To, e.Class)
}
