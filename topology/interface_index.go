package topology

import (
	"fmt"
	"strconv"

	nsview "github.com/frobware/go-nsview"
)

// InterfaceIndex is the set of interfaces found in one namespace,
// addressable by ifindex and by name. Both keys are unique within the
// namespace; NewInterfaceIndex rejects input that violates that.
type InterfaceIndex struct {
	scope   string
	ifaces  []*nsview.Interface
	byIndex map[int]*nsview.Interface
	byName  map[string]*nsview.Interface
}

// NewInterfaceIndex indexes ifaces in the order given. scope names the
// owning namespace and appears in lookup errors.
func NewInterfaceIndex(scope string, ifaces []nsview.Interface) (*InterfaceIndex, error) {
	x := &InterfaceIndex{
		scope:   scope,
		ifaces:  make([]*nsview.Interface, 0, len(ifaces)),
		byIndex: make(map[int]*nsview.Interface, len(ifaces)),
		byName:  make(map[string]*nsview.Interface, len(ifaces)),
	}

	for i := range ifaces {
		iface := &ifaces[i]
		x.ifaces = append(x.ifaces, iface)
		x.byIndex[iface.Index] = iface
		x.byName[iface.Name] = iface
	}

	if len(x.byIndex) != len(x.ifaces) {
		return nil, &nsview.ConsistencyError{
			What:   "interface index",
			Detail: fmt.Sprintf("%s: %d interfaces but %d distinct ifindex values", scope, len(x.ifaces), len(x.byIndex)),
		}
	}
	if len(x.byName) != len(x.ifaces) {
		return nil, &nsview.ConsistencyError{
			What:   "interface index",
			Detail: fmt.Sprintf("%s: %d interfaces but %d distinct names", scope, len(x.ifaces), len(x.byName)),
		}
	}

	return x, nil
}

// ByIndex returns the interface with the given ifindex.
func (x *InterfaceIndex) ByIndex(ifindex int) (*nsview.Interface, error) {
	iface, ok := x.byIndex[ifindex]
	if !ok {
		return nil, &nsview.NotFoundError{Kind: "ifindex", Key: strconv.Itoa(ifindex), Scope: "namespace " + x.scope}
	}
	return iface, nil
}

// ByName returns the interface with the given name.
func (x *InterfaceIndex) ByName(name string) (*nsview.Interface, error) {
	iface, ok := x.byName[name]
	if !ok {
		return nil, &nsview.NotFoundError{Kind: "interface", Key: strconv.Quote(name), Scope: "namespace " + x.scope}
	}
	return iface, nil
}

// All returns the interfaces in discovery order.
func (x *InterfaceIndex) All() []*nsview.Interface {
	return x.ifaces
}

// Len returns the number of interfaces.
func (x *InterfaceIndex) Len() int {
	return len(x.ifaces)
}

// ProgramCount returns the number of programs attached across all
// interfaces.
func (x *InterfaceIndex) ProgramCount() int {
	n := 0
	for _, iface := range x.ifaces {
		n += len(iface.Programs)
	}
	return n
}
