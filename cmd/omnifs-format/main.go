// Command omnifs-format creates a brand-new omnifs image file and seeds it
// with the format-time Admin account, per spec.md §6's "format <image>
// <config>" CLI surface.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"omnifs/internal/config"
	"omnifs/internal/engine"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: omnifs-format <image> <config>")
		os.Exit(1)
	}
	imagePath, configPath := os.Args[1], os.Args[2]

	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("loading config", zap.Error(err))
		os.Exit(1)
	}

	e, err := engine.Format(imagePath, engine.FormatParams{
		TotalSize:     cfg.Filesystem.TotalSize,
		HeaderSize:    cfg.Filesystem.HeaderSize,
		BlockSize:     cfg.Filesystem.BlockSize,
		MaxUsers:      cfg.Filesystem.MaxUsers,
		MaxEntries:    cfg.Filesystem.MaxEntries,
		AdminUsername: cfg.Security.AdminUsername,
		AdminPassword: cfg.Security.AdminPassword,
	}, log)
	if err != nil {
		log.Error("formatting image", zap.String("path", imagePath), zap.Error(err))
		os.Exit(1)
	}
	defer e.Close()

	fmt.Printf("formatted %s: %d bytes, block_size=%d, max_users=%d, max_entries=%d\n",
		imagePath, cfg.Filesystem.TotalSize, cfg.Filesystem.BlockSize, cfg.Filesystem.MaxUsers, cfg.Filesystem.MaxEntries)
}
