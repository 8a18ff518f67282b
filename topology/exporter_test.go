package topology_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nsview "github.com/frobware/go-nsview"
	"github.com/frobware/go-nsview/logging"
	"github.com/frobware/go-nsview/source/memory"
	"github.com/frobware/go-nsview/topology"
)

func export(t *testing.T, src *memory.Source, opts topology.ExportOptions) (*topology.Graph, error) {
	t.Helper()
	reg, err := topology.NewBuilder(src, logging.Discard()).Discover(context.Background())
	require.NoError(t, err)
	return topology.NewExporter(opts, logging.Discard()).Export(reg)
}

func TestExport_CrossNamespaceEdge(t *testing.T) {
	g, err := export(t, twoNamespaces(), topology.ExportOptions{})
	require.NoError(t, err)

	require.Len(t, g.Clusters, 2)
	assert.Equal(t, "ns1", g.Clusters[0].Namespace)
	assert.Equal(t, "ns2", g.Clusters[1].Namespace)
	assert.Equal(t, 4, g.NodeCount())

	// Both ends declare the link; only one edge survives.
	require.Len(t, g.Edges, 1)
	assert.Equal(t, topology.Edge{
		From:  topology.NodeID{Namespace: "ns1", Index: 2},
		To:    topology.NodeID{Namespace: "ns2", Index: 5},
		Class: topology.EdgeCrossNamespace,
	}, g.Edges[0])
	assert.Empty(t, g.Unresolved)
}

func TestExport_NodeContents(t *testing.T) {
	g, err := export(t, twoNamespaces(), topology.ExportOptions{})
	require.NoError(t, err)

	veth0 := g.Clusters[0].Nodes[1]
	assert.Equal(t, "ns1-2", veth0.ID.String())
	assert.Equal(t, "veth0", veth0.Name)
	assert.Equal(t, []string{"inet/10.0.0.1"}, veth0.Addresses)
	assert.Equal(t, []string{"xdp-driver-xdp_pass"}, veth0.Programs)
}

func TestExport_OneSidedLink(t *testing.T) {
	src := twoNamespaces()
	src.Links["/run/netns/ns2"][1].Peer = nil

	g, err := export(t, src, topology.ExportOptions{})
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "ns2-5", g.Edges[0].To.String())
}

func TestExport_StalePeerFails(t *testing.T) {
	src := twoNamespaces()
	// ns1 no longer knows ns2.
	src.Views["/run/netns/ns1"] = src.Views["/run/netns/ns1"][:1]

	_, err := export(t, src, topology.ExportOptions{})
	var nf *nsview.NotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, "netnsid", nf.Kind)
}

func TestExport_StalePeerWarns(t *testing.T) {
	src := twoNamespaces()
	src.Views["/run/netns/ns1"] = src.Views["/run/netns/ns1"][:1]

	g, err := export(t, src, topology.ExportOptions{StalePeers: topology.StalePeersWarn})
	require.NoError(t, err)

	// ns2's declaration still produces the edge.
	require.Len(t, g.Edges, 1)
	require.Len(t, g.Unresolved, 1)
	assert.Equal(t, "ns1-2", g.Unresolved[0].From.String())
	assert.Equal(t, topology.EdgeCrossNamespace, g.Unresolved[0].Class)
}

func TestExport_PeerIndexGone(t *testing.T) {
	src := twoNamespaces()
	src.Links["/run/netns/ns2"] = src.Links["/run/netns/ns2"][:1]

	_, err := export(t, src, topology.ExportOptions{})
	var nf *nsview.NotFoundError
	require.True(t, errors.As(err, &nf), "got %v", err)
	assert.Equal(t, "ifindex", nf.Kind)
}

func TestExport_SameNamespaceEdges(t *testing.T) {
	src := twoNamespaces()
	src.Links["/run/netns/ns1"] = append(src.Links["/run/netns/ns1"],
		nsview.Interface{Index: 10, Name: "va", LinkName: "vb"},
		nsview.Interface{Index: 11, Name: "vb", LinkName: "va"},
	)

	g, err := export(t, src, topology.ExportOptions{})
	require.NoError(t, err)
	assert.Len(t, g.Edges, 1, "same-namespace edges are off by default")

	g, err = export(t, src, topology.ExportOptions{SameNamespaceEdges: true})
	require.NoError(t, err)
	require.Len(t, g.Edges, 2)
	assert.Equal(t, topology.Edge{
		From:  topology.NodeID{Namespace: "ns1", Index: 10},
		To:    topology.NodeID{Namespace: "ns1", Index: 11},
		Class: topology.EdgeSameNamespace,
	}, g.Edges[1])
}

func TestExport_Deterministic(t *testing.T) {
	a, err := export(t, twoNamespaces(), topology.ExportOptions{})
	require.NoError(t, err)
	b, err := export(t, twoNamespaces(), topology.ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExport_RequiresInterfaces(t *testing.T) {
	reg, err := topology.NewRegistry([]nsview.NamespaceRecord{{ID: "ns1"}})
	require.NoError(t, err)

	_, err = topology.NewExporter(topology.ExportOptions{}, logging.Discard()).Export(reg)
	require.Error(t, err)
}

func TestParseStalePeerPolicy(t *testing.T) {
	p, err := topology.ParseStalePeerPolicy("")
	require.NoError(t, err)
	assert.Equal(t, topology.StalePeersFail, p)

	p, err = topology.ParseStalePeerPolicy("warn")
	require.NoError(t, err)
	assert.Equal(t, topology.StalePeersWarn, p)

	_, err = topology.ParseStalePeerPolicy("ignore")
	require.Error(t, err)
}
