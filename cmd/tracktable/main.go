package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tracktable/tracktable/internal/cli"
	"github.com/tracktable/tracktable/internal/orchestrator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := []string{}
	if len(os.Args) > 1 {
		args = os.Args[1:]
	}
	if err := cli.Execute(ctx, args); err != nil {
		if errors.Is(err, orchestrator.ErrCancelled) {
			os.Exit(1)
		}
		log.Fatalf("tracktable: %v", err)
	}
}
