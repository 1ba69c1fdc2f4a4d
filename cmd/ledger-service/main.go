package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"satstack.com/internal/ledger/app"
)

func main() {
	// Ctrl+C / kubernetes stop signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%s exit: %v", app.ServiceName, err)
	}
	log.Printf("%s exit", app.ServiceName)
}
