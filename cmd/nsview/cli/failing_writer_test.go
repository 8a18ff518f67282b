package cli_test

import (
	"errors"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsview/cmd/nsview/cli"
)

// failingWriter accepts budget bytes and then fails with failErr. With
// shortWriteEvery > 0 every Nth call reports a one-byte write and no
// error.
type failingWriter struct {
	budget          int
	failErr         error
	shortWriteEvery int
	writes          int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.shortWriteEvery > 0 && w.writes%w.shortWriteEvery == 0 && len(p) > 0 {
		return 1, nil
	}
	if w.budget <= 0 {
		return 0, w.failErr
	}
	if len(p) <= w.budget {
		w.budget -= len(p)
		return len(p), nil
	}
	n := w.budget
	w.budget = 0
	return n, w.failErr
}

var _ io.Writer = (*failingWriter)(nil)

func TestWriteOut(t *testing.T) {
	tests := []struct {
		name string
		w    *failingWriter
		want error
	}{
		{name: "disk full", w: &failingWriter{failErr: syscall.ENOSPC}, want: syscall.ENOSPC},
		{name: "partial then fail", w: &failingWriter{budget: 3, failErr: syscall.ENOSPC}, want: syscall.ENOSPC},
		{name: "short write", w: &failingWriter{budget: 10, shortWriteEvery: 1}, want: io.ErrShortWrite},
		{name: "fits", w: &failingWriter{budget: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &cli.CLI{Out: tt.w}
			err := c.WriteOut([]byte("graph"))
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestPrintOut_PropagatesEPIPE(t *testing.T) {
	c := &cli.CLI{Out: &failingWriter{failErr: syscall.EPIPE}}
	require.ErrorIs(t, c.PrintOut("NS NETNSID\n"), syscall.EPIPE)
	require.ErrorIs(t, c.PrintOutf("deleted snapshot %d\n", 1), syscall.EPIPE)
}
