package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frobware/go-nsview/config"
	"github.com/frobware/go-nsview/lock"
	"github.com/frobware/go-nsview/render"
	"github.com/frobware/go-nsview/store/sqlite"
	"github.com/frobware/go-nsview/topology"
)

// GraphCmd discovers the host and writes the topology graph.
type GraphCmd struct {
	GraphFlags

	SameNamespaceEdges bool   `name:"same-namespace-edges" help:"Draw edges between devices paired inside one namespace."`
	StalePeers         string `name:"stale-peers" help:"Unresolvable peers: fail or warn. Defaults to graph.stale_peers from the config."`
	RankDir            string `name:"rankdir" help:"Graphviz rankdir attribute."`
	Record             bool   `name:"record" help:"Record the graph in the history database."`
}

// Run executes the graph command.
func (c *GraphCmd) Run(cli *CLI, ctx context.Context) error {
	cfg, logger, err := cli.setup()
	if err != nil {
		return err
	}
	c.apply(&cfg)

	policy, err := topology.ParseStalePeerPolicy(cfg.Graph.StalePeers)
	if err != nil {
		return err
	}
	format, err := render.ParseFormat(cfg.Graph.Format)
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
	g, err := topology.NewExporter(topology.ExportOptions{
		SameNamespaceEdges: cfg.Graph.SameNamespaceEdges,
		StalePeers:         policy,
	}, logger).Export(reg)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	data, err := render.Encode(g, format, render.Options{RankDir: cfg.Graph.RankDir})
	if err != nil {
		return err
	}

	if cfg.Graph.Output == "-" {
		if err := cli.WriteOut(data); err != nil {
			return err
		}
	} else {
		if err := render.WriteFile(cfg.Graph.Output, data, 0o644); err != nil {
			return err
		}
		logger.Info("wrote graph",
			"path", cfg.Graph.Output,
			"namespaces", len(g.Clusters),
			"nodes", g.NodeCount(),
			"edges", len(g.Edges))
	}

	if !c.Record && !cfg.History.Enabled {
		return nil
	}
	return record(ctx, cfg.History, logger, sqlite.NewSnapshot(g, cfg.Source.Kind, time.Now()))
}

// apply overlays the command flags on the loaded config.
func (c *GraphCmd) apply(cfg *config.Config) {
	if c.Output != "" {
		cfg.Graph.Output = c.Output
	}
	if c.Format != "" {
		cfg.Graph.Format = c.Format
	}
	if c.SameNamespaceEdges {
		cfg.Graph.SameNamespaceEdges = true
	}
	if c.StalePeers != "" {
		cfg.Graph.StalePeers = c.StalePeers
	}
	if c.RankDir != "" {
		cfg.Graph.RankDir = c.RankDir
	}
}

func record(ctx context.Context, hc config.HistoryConfig, logger *slog.Logger, snap sqlite.Snapshot) error {
	return lock.Run(ctx, hc.Lock, func(ctx context.Context, held lock.Held) error {
		store, err := sqlite.New(ctx, hc.DB, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		_, err = store.Save(ctx, held, snap)
		return err
	})
}
