package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	maxConcurrent := flag.Int("max-concurrent", 512, "maximum number of in-flight HTTP requests")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	if err := run(ctx, *configPath, *maxConcurrent); err != nil {
		os.Exit(1)
	}
}
