package main

import (
	"context"

	"github.com/bacalhau-project/simverify/cmd/cli"
)

func main() {
	cli.Execute(context.Background())
}
