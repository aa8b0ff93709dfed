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

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Start HTTP server.
func main() {
	var opts bootstrap.Options
	pflag.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	pflag.StringVar(&opts.ConfigFile, "config", "", "YAML overlay for corpus endpoints, allocation tuning and languages")
	pflag.StringVar(&opts.Addr, "addr", "", "listen address, overrides HTTP_PORT")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("lexcontrib api starting")
	app, err := bootstrap.BuildAPI(ctx, opts)
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("lexcontrib api stopped with error: %v", err)
	}
}
