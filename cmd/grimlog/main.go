// Package main runs the grimlog backend: the game session API, the catalog
// admin API, and the AI endpoints when a provider is configured.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/AndrewDeWitt/grimlog/internal/app/server"
	"github.com/AndrewDeWitt/grimlog/internal/platform/otel"
)

var httpAddr = flag.String("addr", "", "HTTP listen address, overrides GRIMLOG_HTTP_ADDR")

func main() {
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}

	shutdownTracing, err := otel.Setup(ctx, "grimlog")
	if err != nil {
		log.Fatalf("setup tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		log.Fatalf("initialize server: %v", err)
	}
	defer srv.Close()

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
