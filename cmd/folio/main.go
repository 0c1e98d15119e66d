package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	parser := kong.Parse(&cli,
		kong.Name("folio"),
		kong.Description("Build a static blog from markdown posts."),
		kong.UsageOnError(),
		kong.Bind(&cli),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(io.Writer(os.Stdout), (*io.Writer)(nil)),
	)
	parser.FatalIfErrorf(parser.Run(&cli))
}
