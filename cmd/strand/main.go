// Package main is the strand CLI: a hub-and-spoke AI agent gateway with a
// ReAct loop, layered memory, sandboxed tools, and a durable task queue.
//
// Start the gateway:
//
//	strand serve --config strand.yaml
//
// Chat locally without a server:
//
//	strand chat
//	strand chat --offline
//
// Configuration can also be supplied through STRAND_* environment
// variables; see internal/config for the full surface.
package main

import (
	"fmt"
	"os"
)

// Build information, populated by ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
