package main

import (
	"os"

	cometxcmder "github.com/papercomputeco/cometx/cmd/cometx"
)

func main() {
	cmd := cometxcmder.NewCometxCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
