package main

import (
	"context"
	"os"

	"github.com/hray3182/ledgerline/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
