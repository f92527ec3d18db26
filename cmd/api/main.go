package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snapsolve/snapsolve/internal/app"
	"github.com/snapsolve/snapsolve/internal/config"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg := config.LoadConfig()
	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer application.Close()

	go application.Server.Start()

	log.Println("SnapSolve is running; DB connected and bootstrapped.")
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
