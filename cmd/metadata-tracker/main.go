package main

import (
	"os"

	"metadata-tracker/internal/codec"
	"metadata-tracker/internal/logging"
)

func main() {
	err := newRootCmd().Execute()
	codec.ShutdownVips()
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}
