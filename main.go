package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tpay/internal/config"
	"tpay/server"
)

func main() {
	conf, err := config.GetConfig()
	if err != nil {
		log.Println("configuration failed;", err)
		os.Exit(1)
	}

	adapter, err := server.NewAdapter(conf)
	if err != nil {
		log.Println("adapter initialization failed;", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = adapter.Start(ctx); err != nil {
		log.Println("server stopped with error;", err)
		os.Exit(1)
	}
	log.Println("server stopped")
}
