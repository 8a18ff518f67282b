package tools_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nsview "github.com/frobware/go-nsview"
	"github.com/frobware/go-nsview/logging"
	"github.com/frobware/go-nsview/source/tools"
)

// fakeRunner answers by the joined argv and records every call.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, argv []string) ([]byte, error) {
	key := strings.Join(argv, " ")
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	out, ok := f.outputs[key]
	if !ok {
		return nil, &nsview.CommandError{Command: argv, ExitCode: 127, Stderr: "not found"}
	}
	return []byte(out), nil
}

func newSource(r tools.Runner, opts ...tools.Option) *tools.Source {
	opts = append([]tools.Option{tools.WithRunner(r), tools.WithLogger(logging.Discard())}, opts...)
	return tools.New(opts...)
}

func TestNamespaces_HostRunsWithoutNsenter(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"lsns --json -t net": `{"namespaces": [{"ns": 1, "type": "net", "pid": 1, "netnsid": "unassigned", "command": "init"}]}`,
	}}

	records, err := newSource(r).Namespaces(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "/proc/1/ns/net", records[0].Handle)
	assert.Equal(t, []string{"lsns --json -t net"}, r.calls)
}

func TestInterfaces_RunsInsideNamespace(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"sudo nsenter -n/run/netns/red ip -j addr": `[{"ifindex": 1, "ifname": "lo"}]`,
	}}

	ifaces, err := newSource(r, tools.WithSudo(true)).Interfaces(context.Background(), "/run/netns/red")
	require.NoError(t, err)
	require.Len(t, ifaces, 1)
	assert.Equal(t, "lo", ifaces[0].Name)
}

func TestCustomPaths(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"/usr/bin/doas /bin/nsenter -n/x /sbin/ip -j addr": `[]`,
	}}
	paths := tools.Paths{
		Sudo:    "/usr/bin/doas",
		Nsenter: "/bin/nsenter",
		Lsns:    "/bin/lsns",
		IP:      "/sbin/ip",
		Bpftool: "/sbin/bpftool",
	}

	_, err := newSource(r, tools.WithSudo(true), tools.WithPaths(paths)).Interfaces(context.Background(), "/x")
	require.NoError(t, err)
}

func TestInterfaces_CommandFailure(t *testing.T) {
	r := &fakeRunner{}

	_, err := newSource(r).Interfaces(context.Background(), "/run/netns/gone")
	var ce *nsview.CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 127, ce.ExitCode)
}

func TestPrograms(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"nsenter -n/run/netns/red bpftool -j net show": `[{"xdp": [{"devname": "eth0", "ifindex": 2, "mode": "generic", "name": "p"}]}]`,
	}}

	listing := newSource(r).Programs(context.Background(), "/run/netns/red")
	require.True(t, listing.Available())
	assert.Equal(t, []nsview.ProgramRecord{
		{Kind: "xdp", DevName: "eth0", Ifindex: 2, Subtype: "generic", Name: "p"},
	}, listing.Records)
}

func TestPrograms_Unavailable(t *testing.T) {
	t.Run("command fails", func(t *testing.T) {
		listing := newSource(&fakeRunner{}).Programs(context.Background(), "/run/netns/red")
		assert.False(t, listing.Available())
		assert.Empty(t, listing.Records)

		var ce *nsview.CommandError
		assert.True(t, errors.As(listing.Unavailable, &ce))
	})

	t.Run("garbage output", func(t *testing.T) {
		r := &fakeRunner{outputs: map[string]string{
			"nsenter -n/run/netns/red bpftool -j net show": `Error: no BTF`,
		}}
		listing := newSource(r).Programs(context.Background(), "/run/netns/red")
		assert.False(t, listing.Available())
	})
}

func TestExecRunner(t *testing.T) {
	out, err := tools.ExecRunner{}.Run(context.Background(), []string{"sh", "-c", "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	_, err = tools.ExecRunner{}.Run(context.Background(), []string{"sh", "-c", "echo oops >&2; exit 3"})
	var ce *nsview.CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, ce.ExitCode)
	assert.Equal(t, "oops\n", ce.Stderr)
}

func TestNamespaces_UnaddressableEntryFails(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"lsns --json -t net": `{"namespaces": [
			{"ns": 4026531840, "type": "net", "pid": 1, "netnsid": "unassigned", "nsfs": null, "command": "init"},
			{"ns": 4026532999, "type": "net", "pid": null, "netnsid": "unassigned", "nsfs": null, "command": null}
		]}`,
	}}

	_, err := newSource(r).Namespaces(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4026532999")
	assert.Equal(t, []string{"lsns --json -t net"}, r.calls, "no host queries on behalf of the entry")
}
