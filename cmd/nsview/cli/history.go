package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frobware/go-nsview/lock"
	"github.com/frobware/go-nsview/render"
	"github.com/frobware/go-nsview/store/sqlite"
)

// HistoryCmd groups the snapshot history subcommands.
type HistoryCmd struct {
	List   HistoryListCmd   `cmd:"" help:"List recorded snapshots."`
	Show   HistoryShowCmd   `cmd:"" help:"Print a recorded graph."`
	Delete HistoryDeleteCmd `cmd:"" help:"Delete a recorded snapshot."`
}

// HistoryListCmd lists recorded snapshots.
type HistoryListCmd struct {
	OutputFlags
}

// Run executes the history list command.
func (c *HistoryListCmd) Run(cli *CLI, ctx context.Context) error {
	cfg, logger, err := cli.setup()
	if err != nil {
		return err
	}
	store, err := sqlite.New(ctx, cfg.History.DB, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	snaps, err := store.List(ctx)
	if err != nil {
		return err
	}
	out, err := format(snaps, &c.OutputFlags, func() string { return formatSnapshotTable(snaps) })
	if err != nil {
		return err
	}
	return cli.PrintOut(out)
}

func formatSnapshotTable(snaps []sqlite.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-20s %-8s %-5s %-6s %-6s %s\n", "ID", "TAKEN", "SOURCE", "NS", "NODES", "EDGES", "UNRESOLVED")
	for _, s := range snaps {
		fmt.Fprintf(&b, "%-6d %-20s %-8s %-5d %-6d %-6d %d\n",
			s.ID, s.TakenAt.Format(time.RFC3339), dash(s.Source), s.Namespaces, s.Nodes, s.Edges, s.Unresolved)
	}
	return b.String()
}

// HistoryShowCmd prints a recorded graph.
type HistoryShowCmd struct {
	ID      int64  `arg:"" help:"Snapshot id."`
	Output  string `short:"o" name:"output" help:"Artifact path. Defaults to stdout." default:"-"`
	Format  string `name:"format" help:"Encoding: dot or json." default:"json"`
	RankDir string `name:"rankdir" help:"Graphviz rankdir attribute."`
}

// Run executes the history show command.
func (c *HistoryShowCmd) Run(cli *CLI, ctx context.Context) error {
	cfg, logger, err := cli.setup()
	if err != nil {
		return err
	}
	format, err := render.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	store, err := sqlite.New(ctx, cfg.History.DB, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	rankdir := c.RankDir
	if rankdir == "" {
		rankdir = cfg.Graph.RankDir
	}
	data, err := render.Encode(snap.Graph, format, render.Options{RankDir: rankdir})
	if err != nil {
		return err
	}
	if c.Output == "-" {
		return cli.WriteOut(data)
	}
	return render.WriteFile(c.Output, data, 0o644)
}

// HistoryDeleteCmd deletes a recorded snapshot.
type HistoryDeleteCmd struct {
	ID int64 `arg:"" help:"Snapshot id."`
}

// Run executes the history delete command.
func (c *HistoryDeleteCmd) Run(cli *CLI, ctx context.Context) error {
	cfg, logger, err := cli.setup()
	if err != nil {
		return err
	}
	return lock.Run(ctx, cfg.History.Lock, func(ctx context.Context, held lock.Held) error {
		store, err := sqlite.New(ctx, cfg.History.DB, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(ctx, held, c.ID); err != nil {
			return err
		}
		return cli.PrintOutf("deleted snapshot %d\n", c.ID)
	})
}
