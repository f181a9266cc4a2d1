package main

import (
	"context"

	"github.com/aretw0/leadflow/internal/cli"
)

func main() {
	ctx := cli.NewSignalContext(context.Background())
	defer ctx.Cancel()
	Execute(ctx)
}
