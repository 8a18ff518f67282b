package topology

import (
	"context"
	"fmt"
	"log/slog"

	nsview "github.com/frobware/go-nsview"
	"github.com/frobware/go-nsview/source"
)

// Builder runs a discovery pass against a Source and returns a fully
// populated Registry.
//
// Every query is a separate snapshot of the host, so a namespace or
// interface seen by one query may be gone by the next. Builder does not
// paper over that: failures surface as errors, except for program
// listings which are best effort.
type Builder struct {
	source source.Source
	logger *slog.Logger
}

// NewBuilder returns a Builder reading from src.
func NewBuilder(src source.Source, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		source: src,
		logger: logger.With("component", "builder"),
	}
}

// Discover lists the host's namespaces and enriches each of them with
// its interfaces, attached programs and nested view.
func (b *Builder) Discover(ctx context.Context) (*Registry, error) {
	records, err := b.source.Namespaces(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	b.logger.Debug("listed namespaces", "count", len(records))

	reg, err := NewRegistry(records)
	if err != nil {
		return nil, err
	}
	if err := b.AttachInterfaces(ctx, reg); err != nil {
		return nil, err
	}
	if err := b.AttachNestedViews(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// AttachInterfaces lists the interfaces of every namespace in reg and
// attaches the programs bound to them. Re-running it replaces the
// previous result.
func (b *Builder) AttachInterfaces(ctx context.Context, reg *Registry) error {
	for _, ns := range reg.Namespaces() {
		ifaces, err := b.source.Interfaces(ctx, ns.Handle)
		if err != nil {
			return fmt.Errorf("list interfaces in namespace %s: %w", ns.ID, err)
		}

		index, err := NewInterfaceIndex(ns.ID, ifaces)
		if err != nil {
			return err
		}
		ns.Interfaces = index
		ns.ProgramsUnavailable = nil

		b.logger.Debug("listed interfaces", "ns", ns.ID, "handle", ns.Handle, "count", index.Len())

		listing := b.source.Programs(ctx, ns.Handle)
		if !listing.Available() {
			ns.ProgramsUnavailable = listing.Unavailable
			b.logger.Warn("attached programs unavailable", "ns", ns.ID, "error", listing.Unavailable)
			continue
		}

		if err := attachPrograms(index, listing.Records); err != nil {
			return fmt.Errorf("attach programs in namespace %s: %w", ns.ID, err)
		}
		b.logger.Debug("attached programs", "ns", ns.ID, "count", len(listing.Records))
	}
	return nil
}

// attachPrograms appends each record to the interface it names. The
// device name and ifindex in a record must identify the same interface.
func attachPrograms(index *InterfaceIndex, records []nsview.ProgramRecord) error {
	for _, rec := range records {
		byName, err := index.ByName(rec.DevName)
		if err != nil {
			return err
		}
		byIndex, err := index.ByIndex(rec.Ifindex)
		if err != nil {
			return err
		}
		if byName != byIndex {
			return &nsview.ConsistencyError{
				What: "program attachment",
				Detail: fmt.Sprintf("%s %q: device %q is ifindex %d but record says ifindex %d (%s)",
					rec.Kind, rec.Name, rec.DevName, byName.Index, rec.Ifindex, byIndex.Name),
			}
		}
		byName.Programs = append(byName.Programs, rec.Program())
	}
	return nil
}

// AttachNestedViews lists the namespaces as seen from inside each
// namespace in reg.
func (b *Builder) AttachNestedViews(ctx context.Context, reg *Registry) error {
	for _, ns := range reg.Namespaces() {
		records, err := b.source.Namespaces(ctx, ns.Handle)
		if err != nil {
			return fmt.Errorf("list namespaces from inside %s: %w", ns.ID, err)
		}
		view, err := NewNestedView(ns.ID, records)
		if err != nil {
			return err
		}
		ns.Nested = view
		b.logger.Debug("listed nested view", "ns", ns.ID, "count", view.Len())
	}
	return nil
}
