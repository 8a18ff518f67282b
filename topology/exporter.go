package topology

import (
	"errors"
	"fmt"
	"log/slog"

	nsview "github.com/frobware/go-nsview"
)

// StalePeerPolicy decides what happens when a peer reference cannot be
// resolved, typically because the peer disappeared between listings.
type StalePeerPolicy string

const (
	// StalePeersFail aborts the export.
	StalePeersFail StalePeerPolicy = "fail"
	// StalePeersWarn skips the edge and records it in Graph.Unresolved.
	StalePeersWarn StalePeerPolicy = "warn"
)

// ParseStalePeerPolicy parses "fail" or "warn". The empty string is
// "fail".
func ParseStalePeerPolicy(s string) (StalePeerPolicy, error) {
	switch s {
	case "", string(StalePeersFail):
		return StalePeersFail, nil
	case string(StalePeersWarn):
		return StalePeersWarn, nil
	default:
		return "", fmt.Errorf("unknown stale peer policy %q (want fail or warn)", s)
	}
}

// ExportOptions controls edge resolution.
type ExportOptions struct {
	// SameNamespaceEdges draws edges between devices paired by name
	// inside one namespace. Off by default; they crowd the picture.
	SameNamespaceEdges bool

	StalePeers StalePeerPolicy
}

// Exporter turns a populated Registry into a Graph.
type Exporter struct {
	opts   ExportOptions
	logger *slog.Logger
}

// NewExporter returns an Exporter with the given options.
func NewExporter(opts ExportOptions, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StalePeers == "" {
		opts.StalePeers = StalePeersFail
	}
	return &Exporter{opts: opts, logger: logger.With("component", "exporter")}
}

// Export emits one cluster per namespace and one edge per resolved peer
// relationship. Output order follows discovery order, so identical
// input yields an identical Graph.
func (e *Exporter) Export(reg *Registry) (*Graph, error) {
	g := &Graph{
		Clusters: make([]Cluster, 0, reg.Len()),
		Edges:    []Edge{},
	}

	for _, ns := range reg.Namespaces() {
		if ns.Interfaces == nil {
			return nil, fmt.Errorf("namespace %s has no interface listing", ns.ID)
		}
		c := Cluster{Namespace: ns.ID, Nodes: make([]Node, 0, ns.Interfaces.Len())}
		for _, iface := range ns.Interfaces.All() {
			c.Nodes = append(c.Nodes, newNode(ns.ID, iface))
		}
		g.Clusters = append(g.Clusters, c)
	}

	seen := make(map[pairKey]struct{})
	for _, ns := range reg.Namespaces() {
		for _, iface := range ns.Interfaces.All() {
			from := NodeID{Namespace: ns.ID, Index: iface.Index}

			edge, ok, err := e.resolve(reg, ns, iface)
			if err != nil {
				var nf *nsview.NotFoundError
				if e.opts.StalePeers == StalePeersWarn && errors.As(err, &nf) {
					u := UnresolvedPeer{From: from, Class: edgeClassOf(e.opts, iface), Reason: err.Error()}
					g.Unresolved = append(g.Unresolved, u)
					e.logger.Warn("skipping unresolved peer", "from", from.String(), "ifname", iface.Name, "error", err)
					continue
				}
				return nil, fmt.Errorf("resolve peer of %s (%s): %w", from, iface.Name, err)
			}
			if !ok {
				continue
			}

			key := newPairKey(edge.From, edge.To)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			g.Edges = append(g.Edges, edge)
		}
	}

	e.logger.Debug("exported graph", "clusters", len(g.Clusters), "nodes", g.NodeCount(), "edges", len(g.Edges))
	return g, nil
}

// resolve finds the edge declared by iface, if any.
func (e *Exporter) resolve(reg *Registry, ns *Namespace, iface *nsview.Interface) (Edge, bool, error) {
	from := NodeID{Namespace: ns.ID, Index: iface.Index}

	if e.opts.SameNamespaceEdges && iface.LinkName != "" {
		peer, err := ns.Interfaces.ByName(iface.LinkName)
		if err != nil {
			return Edge{}, false, err
		}
		return Edge{
			From:  from,
			To:    NodeID{Namespace: ns.ID, Index: peer.Index},
			Class: EdgeSameNamespace,
		}, true, nil
	}

	if iface.Peer == nil {
		return Edge{}, false, nil
	}
	if ns.Nested == nil {
		return Edge{}, false, fmt.Errorf("namespace %s has no nested view", ns.ID)
	}

	peerNsID, err := ns.Nested.Resolve(iface.Peer.NetnsID)
	if err != nil {
		return Edge{}, false, err
	}
	peerNs, err := reg.ByID(peerNsID)
	if err != nil {
		return Edge{}, false, err
	}
	if peerNs.Interfaces == nil {
		return Edge{}, false, fmt.Errorf("namespace %s has no interface listing", peerNs.ID)
	}
	peer, err := peerNs.Interfaces.ByIndex(iface.Peer.Index)
	if err != nil {
		return Edge{}, false, err
	}
	return Edge{
		From:  from,
		To:    NodeID{Namespace: peerNs.ID, Index: peer.Index},
		Class: EdgeCrossNamespace,
	}, true, nil
}

func edgeClassOf(opts ExportOptions, iface *nsview.Interface) EdgeClass {
	if opts.SameNamespaceEdges && iface.LinkName != "" {
		return EdgeSameNamespace
	}
	return EdgeCrossNamespace
}
