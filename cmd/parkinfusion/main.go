// Package main is the entry point for the parkinfusion command line tool.
// It loads configuration, opens the configured store and runs one command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/j-veylop/parkinfusion/internal/app"
	"github.com/j-veylop/parkinfusion/internal/config"
	"github.com/j-veylop/parkinfusion/internal/logger"
	"github.com/j-veylop/parkinfusion/internal/services"
	"github.com/j-veylop/parkinfusion/internal/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, app.ErrUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run contains the main application logic, separated for cleaner error handling.
func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("parkinfusion", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { app.PrintUsage(stderr) }

	var (
		user     string
		showHelp bool
		showVer  bool
	)
	fs.StringVar(&user, "user", "", "User whose data is used (overrides PARKINFUSION_USER)")
	fs.BoolVar(&showHelp, "help", false, "Show help")
	fs.BoolVar(&showHelp, "h", false, "Show help")
	fs.BoolVar(&showVer, "version", false, "Show version")
	fs.BoolVar(&showVer, "v", false, "Show version")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return app.ErrUsage
	}
	rest := fs.Args()

	if showVer || (len(rest) > 0 && rest[0] == "version") {
		fmt.Fprintln(stdout, version.Info())
		return nil
	}
	if showHelp || (len(rest) > 0 && rest[0] == "help") {
		app.PrintUsage(stdout)
		return nil
	}

	// 1. Load configuration from .env files and environment variables
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if user != "" {
		cfg.User = user
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	logger.Setup(stderr, cfg.LogLevel)

	// 2. Open the store and build the ledger
	svcManager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	// Ensure cleanup on exit
	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	// 3. Cancel in-flight store calls on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Run the command
	return app.New(svcManager, stdout, stderr).Run(ctx, rest)
}
