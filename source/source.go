// Package source defines what the topology builder needs from the host
// and decodes the JSON emitted by the listing tools.
//
// Every method addresses a namespace by handle. The empty handle is the
// namespace the process is running in.
package source

import (
	"context"

	nsview "github.com/frobware/go-nsview"
)

// Source lists namespaces, interfaces and attached programs.
//
// Namespaces and Interfaces failures are fatal to a discovery pass.
// Programs never fails; it reports an unavailable listing instead.
type Source interface {
	// Namespaces lists the network namespaces as seen from inside the
	// namespace at handle. Relative ids in the result belong to that
	// observer.
	Namespaces(ctx context.Context, handle string) ([]nsview.NamespaceRecord, error)

	// Interfaces lists the devices in the namespace at handle.
	Interfaces(ctx context.Context, handle string) ([]nsview.Interface, error)

	// Programs lists the programs attached to devices in the namespace
	// at handle.
	Programs(ctx context.Context, handle string) nsview.ProgramListing
}
