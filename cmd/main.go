package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/inktime/support-backend/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	application.Start()
	application.Log.Info("Support backend running, ingestion worker active")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	application.Log.Info("Shutting down", "signal", sig.String())
}
