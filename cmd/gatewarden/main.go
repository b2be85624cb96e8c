// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"gatewarden/internal/config"
	"gatewarden/internal/server"
)

func main() {
	cmd := &cli.Command{
		Name:   "gatewarden",
		Usage:  "Verification and anti-bot gate for community chats",
		Flags:  config.Flags(),
		Action: server.Run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
