package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	tomin "github.com/tomin-app/tomin-web"
	"github.com/tomin-app/tomin-web/config"
	"github.com/tomin-app/tomin-web/gateway"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	logger := tomin.DefaultLogger()

	app, err := gateway.New(cfg, gateway.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to build gateway: %s", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-done
		logger.Info("Shutting down")
		if err := app.Shutdown(); err != nil {
			logger.Error("Shutdown error: %s", err)
		}
	}()

	if err := app.Start(); err != nil {
		log.Fatalf("server error: %s", err)
	}
}
