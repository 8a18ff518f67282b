// Package memory provides an in-memory source.Source for tests and
// fixtures.
package memory

import (
	"context"
	"fmt"
	"slices"

	nsview "github.com/frobware/go-nsview"
)

// Call records one query made against the Source.
type Call struct {
	Method string
	Handle string
}

func (c Call) String() string {
	return fmt.Sprintf("%s(%q)", c.Method, c.Handle)
}

// Source answers queries from maps keyed by namespace handle. The empty
// handle is the host.
type Source struct {
	// Views holds namespace listings by observer handle.
	Views map[string][]nsview.NamespaceRecord
	// Links holds interface listings by handle.
	Links map[string][]nsview.Interface
	// Attachments holds program listings by handle.
	Attachments map[string][]nsview.ProgramRecord
	// ProgramErrors makes Programs report an unavailable listing.
	ProgramErrors map[string]error

	Calls []Call
}

// New returns an empty Source.
func New() *Source {
	return &Source{
		Views:         make(map[string][]nsview.NamespaceRecord),
		Links:         make(map[string][]nsview.Interface),
		Attachments:   make(map[string][]nsview.ProgramRecord),
		ProgramErrors: make(map[string]error),
	}
}

// Namespaces implements source.Source.
func (s *Source) Namespaces(ctx context.Context, handle string) ([]nsview.NamespaceRecord, error) {
	s.Calls = append(s.Calls, Call{Method: "Namespaces", Handle: handle})
	view, ok := s.Views[handle]
	if !ok {
		return nil, missing(handle, "lsns", "--json", "-t", "net")
	}
	return slices.Clone(view), nil
}

// Interfaces implements source.Source. The returned interfaces are
// copies, so callers may attach programs without touching the fixture.
func (s *Source) Interfaces(ctx context.Context, handle string) ([]nsview.Interface, error) {
	s.Calls = append(s.Calls, Call{Method: "Interfaces", Handle: handle})
	links, ok := s.Links[handle]
	if !ok {
		return nil, missing(handle, "ip", "-j", "addr")
	}
	out := make([]nsview.Interface, len(links))
	for i, l := range links {
		l.Addresses = slices.Clone(l.Addresses)
		l.Programs = slices.Clone(l.Programs)
		out[i] = l
	}
	return out, nil
}

// Programs implements source.Source.
func (s *Source) Programs(ctx context.Context, handle string) nsview.ProgramListing {
	s.Calls = append(s.Calls, Call{Method: "Programs", Handle: handle})
	if err, ok := s.ProgramErrors[handle]; ok {
		return nsview.ProgramsUnavailable(handle, err)
	}
	return nsview.ProgramListing{Records: slices.Clone(s.Attachments[handle])}
}

func missing(handle string, argv ...string) error {
	cmd := append([]string{"nsenter", "-n" + handle}, argv...)
	return &nsview.CommandError{
		Command:  cmd,
		ExitCode: 1,
		Stderr:   fmt.Sprintf("nsenter: cannot open %s: No such file or directory", handle),
	}
}
