package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/frobware/go-nsview/topology"
)

// NamespacesCmd lists discovered namespaces.
type NamespacesCmd struct {
	OutputFlags
}

// namespaceRow is the listing form of a discovered namespace.
type namespaceRow struct {
	ID         string `json:"id"`
	NetnsID    string `json:"netnsid"`
	PID        int    `json:"pid"`
	Command    string `json:"command"`
	Handle     string `json:"handle"`
	Interfaces int    `json:"interfaces"`
	Programs   int    `json:"programs"`
	// ProgramsUnavailable carries the reason the program listing
	// could not be produced, if any.
	ProgramsUnavailable string `json:"programs_unavailable,omitempty"`
}

// Run executes the namespaces command.
func (c *NamespacesCmd) Run(cli *CLI, ctx context.Context) error {
	cfg, logger, err := cli.setup()
	if err != nil {
		return err
	}
	src, err := cli.NewSource(cfg.Source, logger)
	if err != nil {
		return err
	}
	reg, err := topology.NewBuilder(src, logger).Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	rows := namespaceRows(reg)
	out, err := format(rows, &c.OutputFlags, func() string { return formatNamespaceTable(rows) })
	if err != nil {
		return err
	}
	return cli.PrintOut(out)
}

func namespaceRows(reg *topology.Registry) []namespaceRow {
	rows := make([]namespaceRow, 0, reg.Len())
	for _, ns := range reg.Namespaces() {
		row := namespaceRow{
			ID:      ns.ID,
			NetnsID: ns.RelativeID(),
			PID:     ns.PID,
			Command: ns.Command,
			Handle:  ns.Handle,
		}
		if ns.Interfaces != nil {
			row.Interfaces = ns.Interfaces.Len()
			row.Programs = ns.Interfaces.ProgramCount()
		}
		if ns.ProgramsUnavailable != nil {
			row.ProgramsUnavailable = ns.ProgramsUnavailable.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

func formatNamespaceTable(rows []namespaceRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-10s %-8s %-6s %-6s %-20s %s\n", "NS", "NETNSID", "PID", "IFACES", "PROGS", "COMMAND", "HANDLE")
	for _, r := range rows {
		progs := fmt.Sprintf("%d", r.Programs)
		if r.ProgramsUnavailable != "" {
			progs = "?"
		}
		fmt.Fprintf(&b, "%-12s %-10s %-8d %-6d %-6s %-20s %s\n",
			r.ID, r.NetnsID, r.PID, r.Interfaces, progs, dash(truncate(r.Command, 20)), dash(r.Handle))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
