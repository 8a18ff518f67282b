package topology_test

import (
	nsview "github.com/frobware/go-nsview"
	"github.com/frobware/go-nsview/source/memory"
)

func intp(v int) *int { return &v }

// twoNamespaces returns a host with namespaces ns1 and ns2 joined by a
// veth pair. ns1 knows ns2 as relative id 0; ns2 knows ns1 as 7.
func twoNamespaces() *memory.Source {
	src := memory.New()

	ns1 := nsview.NamespaceRecord{ID: "ns1", NetnsID: intp(3), Handle: "/run/netns/ns1", PID: 100, Command: "sleep"}
	ns2 := nsview.NamespaceRecord{ID: "ns2", NetnsID: intp(4), Handle: "/run/netns/ns2", PID: 200, Command: "sleep"}

	src.Views[""] = []nsview.NamespaceRecord{ns1, ns2}
	src.Views[ns1.Handle] = []nsview.NamespaceRecord{
		{ID: "ns1", Handle: ns1.Handle},
		{ID: "ns2", NetnsID: intp(0), Handle: ns2.Handle},
	}
	src.Views[ns2.Handle] = []nsview.NamespaceRecord{
		{ID: "ns1", NetnsID: intp(7), Handle: ns1.Handle},
		{ID: "ns2", Handle: ns2.Handle},
	}

	src.Links[ns1.Handle] = []nsview.Interface{
		{Index: 1, Name: "lo", Addresses: []nsview.Address{{Family: "inet", Local: "127.0.0.1"}}},
		{Index: 2, Name: "veth0", Addresses: []nsview.Address{{Family: "inet", Local: "10.0.0.1"}},
			Peer: &nsview.CrossPeer{NetnsID: 0, Index: 5}},
	}
	src.Links[ns2.Handle] = []nsview.Interface{
		{Index: 1, Name: "lo"},
		{Index: 5, Name: "veth1", Addresses: []nsview.Address{{Family: "inet", Local: "10.0.0.2"}},
			Peer: &nsview.CrossPeer{NetnsID: 7, Index: 2}},
	}

	src.Attachments[ns1.Handle] = []nsview.ProgramRecord{
		{Kind: "xdp", DevName: "veth0", Ifindex: 2, Subtype: "driver", Name: "xdp_pass"},
	}
	return src
}
