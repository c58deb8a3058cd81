package main

import (
	"os"

	"github.com/relaygraph/relaygraph/cmd/relaygraph"
)

func main() {
	if err := relaygraph.Execute(); err != nil {
		os.Exit(1)
	}
}
