package main

import (
	"os"

	"github.com/tillberg/autorestart"

	"github.com/soyeahso/remdev/internal/cli"
)

func main() {
	// Development convenience: re-exec when the binary is rebuilt.
	if os.Getenv("REMDEV_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
