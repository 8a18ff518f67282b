package topology

import (
	"fmt"
	"strconv"

	nsview "github.com/frobware/go-nsview"
)

// Namespace is a namespace in the global registry together with the
// state gathered for it after discovery.
type Namespace struct {
	nsview.NamespaceRecord

	// Interfaces is nil until the builder has listed the namespace.
	Interfaces *InterfaceIndex

	// Nested is how this namespace sees the other namespaces. It is
	// only used to translate relative ids reported by interfaces in
	// this namespace.
	Nested *NestedView

	// ProgramsUnavailable is set when programs could not be listed.
	ProgramsUnavailable error
}

// recordIndex maps namespace ids and relative ids to positions in an
// ordered record list. Ids must be unique; relative ids may repeat and
// the last record wins.
type recordIndex struct {
	byID      map[string]int
	byNetnsID map[int]int
}

func newRecordIndex(what string, records []nsview.NamespaceRecord) (recordIndex, error) {
	x := recordIndex{
		byID:      make(map[string]int, len(records)),
		byNetnsID: make(map[int]int),
	}
	for i, rec := range records {
		x.byID[rec.ID] = i
		if rec.NetnsID != nil {
			x.byNetnsID[*rec.NetnsID] = i
		}
	}
	if len(x.byID) != len(records) {
		return recordIndex{}, &nsview.ConsistencyError{
			What:   what,
			Detail: fmt.Sprintf("%d namespaces but %d distinct ids", len(records), len(x.byID)),
		}
	}
	return x, nil
}

// Registry is the global set of namespaces as seen from the host. It
// owns the per-namespace enrichment state.
type Registry struct {
	namespaces []*Namespace
	index      recordIndex
}

// NewRegistry indexes records in the order given.
func NewRegistry(records []nsview.NamespaceRecord) (*Registry, error) {
	index, err := newRecordIndex("namespace registry", records)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		namespaces: make([]*Namespace, len(records)),
		index:      index,
	}
	for i, rec := range records {
		r.namespaces[i] = &Namespace{NamespaceRecord: rec}
	}
	return r, nil
}

// ByID returns the namespace with the given global id.
func (r *Registry) ByID(id string) (*Namespace, error) {
	i, ok := r.index.byID[id]
	if !ok {
		return nil, &nsview.NotFoundError{Kind: "namespace", Key: id, Scope: "registry"}
	}
	return r.namespaces[i], nil
}

// ByRelativeID returns the namespace the host knows by netnsid.
func (r *Registry) ByRelativeID(netnsid int) (*Namespace, error) {
	i, ok := r.index.byNetnsID[netnsid]
	if !ok {
		return nil, &nsview.NotFoundError{Kind: "netnsid", Key: strconv.Itoa(netnsid), Scope: "registry"}
	}
	return r.namespaces[i], nil
}

// Namespaces returns the namespaces in discovery order.
func (r *Registry) Namespaces() []*Namespace {
	return r.namespaces
}

// Len returns the number of namespaces.
func (r *Registry) Len() int {
	return len(r.namespaces)
}

// NestedView is a namespace listing taken from inside one namespace.
// Its relative ids belong to the observer alone, so it is kept apart
// from the Registry and only answers relative-id translations.
type NestedView struct {
	observer string
	records  []nsview.NamespaceRecord
	index    recordIndex
}

// NewNestedView indexes records as listed from inside observer.
func NewNestedView(observer string, records []nsview.NamespaceRecord) (*NestedView, error) {
	index, err := newRecordIndex("nested view of "+observer, records)
	if err != nil {
		return nil, err
	}
	return &NestedView{observer: observer, records: records, index: index}, nil
}

// Observer returns the id of the namespace the view was taken from.
func (v *NestedView) Observer() string {
	return v.observer
}

// Resolve translates a relative id into a global namespace id. Ids
// the observer reported as unassigned never resolve.
func (v *NestedView) Resolve(netnsid int) (string, error) {
	i, ok := v.index.byNetnsID[netnsid]
	if !ok {
		return "", &nsview.NotFoundError{
			Kind:  "netnsid",
			Key:   strconv.Itoa(netnsid),
			Scope: "view from namespace " + v.observer,
		}
	}
	return v.records[i].ID, nil
}

// Len returns the number of namespaces visible to the observer.
func (v *NestedView) Len() int {
	return len(v.records)
}
