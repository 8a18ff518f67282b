// nsview draws the network namespaces of a host, their interfaces and
// attached programs, and the links between them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-nsview/cmd/nsview/cli"
)

func main() {
	c := cli.CLI{Out: os.Stdout}
	kctx := kong.Parse(&c, cli.KongOptions()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(&c); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
