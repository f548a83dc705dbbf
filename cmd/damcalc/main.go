package main

import (
	"os"

	"dam-stability/internal/observability"
)

func main() {
	err := newRootCmd().Execute()
	observability.SyncLogger()
	if err != nil {
		os.Exit(1)
	}
}
