package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nsview "github.com/frobware/go-nsview"
	"github.com/frobware/go-nsview/config"
	"github.com/frobware/go-nsview/logging"
	"github.com/frobware/go-nsview/source"
	"github.com/frobware/go-nsview/source/memory"
	"github.com/frobware/go-nsview/store/sqlite"
)

func intp(v int) *int { return &v }

func fixture() *memory.Source {
	src := memory.New()
	red := nsview.NamespaceRecord{ID: "4026532200", NetnsID: intp(0), Handle: "/run/netns/red", PID: 10, Command: "sleep"}
	blue := nsview.NamespaceRecord{ID: "4026532300", NetnsID: intp(1), Handle: "/run/netns/blue", PID: 20, Command: "sleep"}

	src.Views[""] = []nsview.NamespaceRecord{red, blue}
	src.Views[red.Handle] = []nsview.NamespaceRecord{{ID: red.ID}, {ID: blue.ID, NetnsID: intp(0)}}
	src.Views[blue.Handle] = []nsview.NamespaceRecord{{ID: red.ID, NetnsID: intp(0)}, {ID: blue.ID}}

	src.Links[red.Handle] = []nsview.Interface{
		{Index: 2, Name: "veth-red", Peer: &nsview.CrossPeer{NetnsID: 0, Index: 3}},
	}
	src.Links[blue.Handle] = []nsview.Interface{
		{Index: 3, Name: "veth-blue", Peer: &nsview.CrossPeer{NetnsID: 0, Index: 2}},
	}
	src.ProgramErrors[blue.Handle] = os.ErrPermission
	return src
}

// runCLI parses args against a CLI wired to src and runs the selected
// command, returning what it wrote to stdout.
func runCLI(t *testing.T, src source.Source, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	c := CLI{
		Out: &out,
		newSource: func(config.SourceConfig, *slog.Logger) (source.Source, error) {
			return src, nil
		},
	}
	parser, err := kong.New(&c, KongOptions()...)
	require.NoError(t, err)

	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	kctx.BindTo(context.Background(), (*context.Context)(nil))

	err = kctx.Run(&c)
	return out.String(), err
}

// writeConfig writes a config file that keeps history under dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "nsview.toml")
	data := `
[history]
db = "` + filepath.Join(dir, "history.db") + `"
lock = "` + filepath.Join(dir, "nsview.lock") + `"

[logging]
level = "error"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestGraph_Stdout(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	out, err := runCLI(t, fixture(), "--config", cfg, "graph", "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph G {")
	assert.Contains(t, out, `"4026532200-2":name -> "4026532300-3":name [dir=none, color=red]`)
}

func TestGraph_WritesArtifact(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	artifact := filepath.Join(dir, "topo.json")

	out, err := runCLI(t, fixture(), "--config", cfg, "graph", "-o", artifact, "--format", "json")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	var g struct {
		Clusters []json.RawMessage `json:"clusters"`
		Edges    []json.RawMessage `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Len(t, g.Clusters, 2)
	assert.Len(t, g.Edges, 1)
}

func TestGraph_StalePeerPolicy(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())
	src := fixture()
	src.Views["/run/netns/red"] = src.Views["/run/netns/red"][:1]

	_, err := runCLI(t, src, "--config", cfg, "graph", "-o", "-")
	require.Error(t, err)

	src.Calls = nil
	out, err := runCLI(t, src, "--config", cfg, "graph", "-o", "-", "--stale-peers", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "color=red")
}

func TestGraph_RecordAndHistory(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	_, err := runCLI(t, fixture(), "--config", cfg, "graph", "-o", "-", "--record")
	require.NoError(t, err)

	out, err := runCLI(t, fixture(), "--config", cfg, "history", "list", "-o", "json")
	require.NoError(t, err)
	var snaps []sqlite.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, 2, snaps[0].Namespaces)
	assert.Equal(t, 1, snaps[0].Edges)

	out, err = runCLI(t, fixture(), "--config", cfg, "history", "show", "1", "--format", "dot")
	require.NoError(t, err)
	assert.Contains(t, out, `subgraph "cluster_4026532200"`)

	out, err = runCLI(t, fixture(), "--config", cfg, "history", "delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "deleted snapshot 1\n", out)

	_, err = runCLI(t, fixture(), "--config", cfg, "history", "show", "1")
	var nf *nsview.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestNamespaces_Table(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	out, err := runCLI(t, fixture(), "--config", cfg, "namespaces")
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "NETNSID")
	assert.Contains(t, string(lines[1]), "4026532200")
	assert.Contains(t, string(lines[2]), "?", "blue's programs are unavailable")
}

func TestNamespaces_JSONPath(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	out, err := runCLI(t, fixture(), "--config", cfg, "namespaces", "-o", "jsonpath={[*].handle}")
	require.NoError(t, err)
	assert.Equal(t, "/run/netns/red /run/netns/blue\n", out)
}

func TestNamespaces_JSON(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	out, err := runCLI(t, fixture(), "--config", cfg, "namespaces", "-o", "json")
	require.NoError(t, err)

	var rows []namespaceRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "0", rows[0].NetnsID)
	assert.Equal(t, 1, rows[0].Interfaces)
	assert.NotEmpty(t, rows[1].ProgramsUnavailable)
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	c := CLI{Config: writeConfig(t, t.TempDir()), Source: "native", Sudo: true}
	cfg, err := c.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "native", cfg.Source.Kind)
	assert.True(t, cfg.Source.Sudo)

	c.Source = "ssh"
	_, err = c.LoadConfig()
	require.Error(t, err)
}

func TestLogger_Precedence(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Logging.Components = map[string]string{"builder": "debug"}

	t.Setenv(logging.EnvVar, "")
	c := CLI{}
	logger, err := c.Logger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo), "component overrides keep the warn default")
	assert.True(t, logger.With(logging.ComponentKey, "builder").Enabled(ctx, slog.LevelDebug))

	t.Setenv(logging.EnvVar, "debug")
	logger, err = c.Logger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(ctx, slog.LevelDebug), "environment beats config")

	c.Log = "error"
	logger, err = c.Logger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Enabled(ctx, slog.LevelWarn), "flag beats environment")
}
