package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gerunddev/wikibridge/internal/config"
	"github.com/gerunddev/wikibridge/internal/daemon"
	"github.com/gerunddev/wikibridge/internal/logger"
	"github.com/gerunddev/wikibridge/internal/styles"
	"github.com/gerunddev/wikibridge/internal/sync"
	"github.com/gerunddev/wikibridge/internal/wiki"
)

// Start starts the daemon in background mode
func Start(args []string) {
	successStyle := styles.SuccessStyle
	errorStyle := styles.ErrorStyle
	dimStyle := styles.DimStyle

	// Check if already running
	running, pid, _ := daemon.IsRunning()
	if running {
		fmt.Println(errorStyle.Render(fmt.Sprintf("✗ Daemon already running with PID %d", pid)))
		os.Exit(1)
	}

	// Parse interval from args or use default
	intervalArg := ""
	for i, arg := range args {
		if arg == "--interval" && i+1 < len(args) {
			intervalArg = args[i+1]
			break
		}
	}

	daemonArgs := []string{"daemon"}
	if intervalArg != "" {
		daemonArgs = append(daemonArgs, "--interval", intervalArg)
	}

	if err := daemon.Daemonize(daemonArgs); err != nil {
		fmt.Println(errorStyle.Render("✗ Failed to start daemon: " + err.Error()))
		os.Exit(1)
	}

	// Give it a moment to start
	time.Sleep(500 * time.Millisecond)

	running, pid, _ = daemon.IsRunning()
	if running {
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ Daemon started with PID %d", pid)))
		fmt.Println(dimStyle.Render("  Run 'wikibridge status' to check sync state"))
	} else {
		fmt.Println(errorStyle.Render("✗ Daemon failed to start"))
		os.Exit(1)
	}
}

// Stop stops the running daemon
func Stop() {
	successStyle := styles.SuccessStyle
	errorStyle := styles.ErrorStyle
	dimStyle := styles.DimStyle

	running, pid, _ := daemon.IsRunning()
	if !running {
		fmt.Println(dimStyle.Render("Daemon is not running"))
		return
	}

	fmt.Printf("Stopping daemon (PID %d)...\n", pid)

	if err := daemon.Stop(); err != nil {
		fmt.Println(errorStyle.Render("✗ Failed to stop daemon: " + err.Error()))
		os.Exit(1)
	}

	// Wait for it to stop
	for i := 0; i < 10; i++ {
		time.Sleep(500 * time.Millisecond)
		running, _, _ = daemon.IsRunning()
		if !running {
			break
		}
	}

	if running {
		fmt.Println(errorStyle.Render("✗ Daemon did not stop gracefully"))
		os.Exit(1)
	}

	fmt.Println(successStyle.Render("✓ Daemon stopped"))
}

// Daemon runs the periodic push loop in the foreground. SIGTERM and SIGINT
// stop it after the in-flight run finishes.
func Daemon(args []string) {
	// Parse --interval flag
	var interval time.Duration
	for i, arg := range args {
		if arg == "--interval" && i+1 < len(args) {
			var err error
			interval, err = time.ParseDuration(args[i+1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: Invalid interval: %v\n", err)
				os.Exit(1)
			}
		}
	}

	cfg, st, err := loadConfigAndState()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if interval > 0 {
		cfg.Interval = interval
	}

	if err := daemon.WritePID(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing PID file: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := daemon.RemovePID(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to remove PID file on shutdown: %v\n", err)
		}
	}()

	// Set up structured logging
	log := logger.Discard()
	if cfg.LogFile != "" {
		if l, cleanup, err := logger.NewFileLogger(cfg.LogFile); err == nil {
			defer cleanup()
			log = l
		}
	}

	log.Info("daemon started",
		"pid", os.Getpid(),
		"interval", cfg.Interval)

	remote, client := buildRemote(cfg)
	renderer := wiki.NewHTTPRenderer(cfg.RendererURL)
	syncer := sync.NewSyncer(cfg, st, remote, renderer, client, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOnce := func() {
		docs, err := scanDocuments(cfg)
		if err != nil {
			log.Error("document scan failed", "error", err)
			return
		}

		result, err := syncer.Run(ctx, docs, sync.ModePush, false)
		if err != nil {
			log.Error("sync failed", "error", err)
		} else {
			log.Info("sync tick completed",
				"processed", result.Processed,
				"failed", result.Failed,
				"warnings", len(result.Warnings))
		}

		// Save state after each run, even a partial one.
		if err := st.Save(config.StateFilePath()); err != nil {
			log.Error("failed to save state", "error", err)
		}
	}

	runOnce()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runOnce()
		case <-ctx.Done():
			log.Info("daemon shutdown complete")
			return
		}
	}
}
