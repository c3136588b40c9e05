package main

import (
	"context"
	"os"

	"github.com/vjranagit/leveltracker/pkg/cli"
)

var version = "0.1.0"

func main() {
	if err := cli.Run(context.Background(), os.Args, version); err != nil {
		os.Exit(1)
	}
}
