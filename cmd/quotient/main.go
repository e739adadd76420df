package main

import (
	"os"

	"github.com/mzaremba/quotient/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
