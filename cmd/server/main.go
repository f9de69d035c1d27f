// Command server wires and runs the complete log-analysis pipeline: it loads
// configuration, constructs C1-C11, and serves chat submission, SSE
// streaming, plan preview, and cache administration over HTTP. Grounded on
// the teacher's cmd/main.go + internal/app initialization/Start/Stop/Run
// sequencing; flags and shutdown signal handling follow the same shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"logforensics/internal/server"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.Parse()

	if configFile == "" {
		if envConfigFile := os.Getenv("LOGFORENSICS_CONFIG_FILE"); envConfigFile != "" {
			configFile = envConfigFile
		} else {
			configFile = "./configs/config.yaml"
		}
	}

	fmt.Printf("using configuration file: %s\n", configFile)

	app, err := server.New(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
}
