package main

import (
	"fmt"
	"os"

	"github.com/gerunddev/wikibridge/internal/commands"
	"github.com/gerunddev/wikibridge/internal/config"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "start":
		commands.Start(os.Args[2:])
	case "daemon":
		commands.Daemon(os.Args[2:])
	case "stop":
		commands.Stop()
	case "sync", "push":
		commands.Sync(os.Args[2:])
	case "pull":
		commands.Sync(append([]string{"--pull"}, os.Args[2:]...))
	case "status":
		commands.Status()
	case "version", "-v", "--version":
		fmt.Printf("wikibridge v%s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	usage := fmt.Sprintf(`wikibridge - Sync a Markdown tree with a hierarchical wiki

Usage:
  wikibridge <command> [options]

Commands:
  sync        Push local documents to the wiki (use --dry-run to preview)
  pull        Bring remote edits back into the Markdown tree
  start       Start the periodic push daemon in the background
  daemon      Run the push daemon in the foreground (for debugging)
  stop        Stop the running daemon
  status      Show daemon state and the sync ledger
  version     Show version information
  help        Show this help message

Examples:
  wikibridge sync
  wikibridge sync --dry-run
  wikibridge pull --dry-run
  wikibridge start --interval 5m
  wikibridge status

Credentials are read from WIKIBRIDGE_USERNAME and WIKIBRIDGE_API_TOKEN.

Configuration:
  Config file: %s
  State file:  %s

For more information, visit: https://github.com/gerunddev/wikibridge
`, config.ConfigPath(), config.StateFilePath())
	fmt.Print(usage)
}
