package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func run(ctx context.Context, getenv func(string) string, getwd func() (string, error), args []string) error {
	cfg := NewConfig()
	if err := cfg.LoadDotEnv(getwd); err != nil {
		return err
	}
	cfg.LoadEnv(getenv)
	if err := cfg.ParseFlags(args); err != nil {
		return err
	}

	srv, err := NewServerApp(ctx, cfg)
	if err != nil {
		return err
	}

	if err := srv.Run(ctx); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func main() {
	// Initialize context that cancelled on SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		slog.Warn("Interrupt signal")
		cancel()
	}()

	if err := run(ctx, os.Getenv, os.Getwd, os.Args[1:]); err != nil {
		slog.Error("Server stopped with error", "error", err.Error())
		os.Exit(1)
	}
}
