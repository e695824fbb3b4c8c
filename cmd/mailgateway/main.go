package main

import (
	"os"

	"github.com/nhle/mail-gateway/cmd/mailgateway/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
