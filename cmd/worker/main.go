package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lexcontrib/internal/app/bootstrap"

	"github.com/spf13/pflag"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Run the outbox relay and the abandoned-session expirer until signalled.
func main() {
	var opts bootstrap.Options
	pflag.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	pflag.StringVar(&opts.ConfigFile, "config", "", "YAML overlay for corpus endpoints, allocation tuning and languages")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("lexcontrib worker starting")
	app, err := bootstrap.BuildWorker(ctx, opts)
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("lexcontrib worker stopped with error: %v", err)
	}
}
