// Command omnifs-serve opens an existing omnifs image and serves the
// operation engine over JSON-over-HTTP, per spec.md §6's "serve <image>
// <config>" CLI surface.
package main

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"omnifs/internal/config"
	"omnifs/internal/engine"
	"omnifs/internal/transport"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: omnifs-serve <image> <config>")
		os.Exit(1)
	}
	imagePath, configPath := os.Args[1], os.Args[2]

	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("loading config", zap.Error(err))
		os.Exit(2)
	}

	e, err := engine.Open(imagePath, log)
	if err != nil {
		log.Error("opening image", zap.String("path", imagePath), zap.Error(err))
		os.Exit(2)
	}
	defer e.Close()

	srv := transport.New(e, log)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("serving", zap.String("image", imagePath), zap.String("addr", addr))
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(2)
	}
}
