// Command tugraphctl operates a TuGraph HA cluster from the command line.
//
// Usage:
//
//	tugraphctl --addr 10.0.0.1:9090 -u admin -p secret cluster
//	tugraphctl --addr 10.0.0.1:9090 query "MATCH (n) RETURN count(n)"
//	tugraphctl --config tugraph.yaml import data import.conf --nats-url nats://localhost:4222
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := newApp(os.Stdout)
	defer a.close()

	return newRootCmd(a).ExecuteContext(ctx)
}
