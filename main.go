package main

import (
	"os"

	"github.com/giygas/protoscan/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
