package main

import (
	"os"

	"github.com/callgear-sync/cg-webhook/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
