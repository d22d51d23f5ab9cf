package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/gerunddev/wikibridge/internal/config"
	"github.com/gerunddev/wikibridge/internal/diff"
	"github.com/gerunddev/wikibridge/internal/logger"
	"github.com/gerunddev/wikibridge/internal/styles"
	"github.com/gerunddev/wikibridge/internal/sync"
	"github.com/gerunddev/wikibridge/internal/wiki"
)

// Sync performs a one-shot sync run. Push is the default direction; --pull
// brings remote edits back, and --dry-run previews without touching anything.
func Sync(args []string) {
	dryRun := false
	mode := sync.ModePush
	for _, arg := range args {
		switch arg {
		case "--dry-run", "-n":
			dryRun = true
		case "--pull":
			mode = sync.ModePull
		case "--push":
			mode = sync.ModePush
		default:
			fmt.Fprintf(os.Stderr, "Unknown flag: %s\n", arg)
			os.Exit(1)
		}
	}

	cfg, st, err := loadConfigAndState()
	if err != nil {
		fmt.Println(styles.ErrorStyle.Render("✗ " + err.Error()))
		os.Exit(1)
	}

	docs, err := scanDocuments(cfg)
	if err != nil {
		fmt.Println(styles.ErrorStyle.Render("✗ Failed to scan documents: " + err.Error()))
		os.Exit(1)
	}

	remote, client := buildRemote(cfg)
	renderer := wiki.NewHTTPRenderer(cfg.RendererURL)

	log := logger.New(os.Stderr)
	syncer := sync.NewSyncer(cfg, st, remote, renderer, client, log)

	// Ctrl-C cancels in-flight documents; whatever already completed keeps
	// its ledger record.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dryRun {
		fmt.Println(styles.InfoStyle.Render("Dry run: no remote or local changes will be made"))
	}

	result, runErr := syncer.Run(ctx, docs, mode, dryRun)

	if !dryRun {
		if err := st.Save(config.StateFilePath()); err != nil {
			fmt.Println(styles.ErrorStyle.Render("✗ Failed to save state: " + err.Error()))
			os.Exit(1)
		}
	}

	printResult(result, dryRun)

	if runErr != nil {
		fmt.Println(styles.ErrorStyle.Render("✗ Sync aborted: " + runErr.Error()))
		os.Exit(1)
	}
	if result.Failed > 0 {
		os.Exit(1)
	}
}

func printResult(result *sync.Result, dryRun bool) {
	fmt.Println(styles.SuccessStyle.Render("✓ " + result.String()))

	if len(result.Warnings) > 0 {
		fmt.Println(styles.WarningStyle.Render(fmt.Sprintf("  %d warning(s):", len(result.Warnings))))
		for _, warning := range result.Warnings {
			fmt.Println(styles.DimStyle.Render("    " + warning))
		}
	}

	if len(result.Orphans) > 0 {
		fmt.Println(styles.WarningStyle.Render(fmt.Sprintf("  %d orphaned record(s):", len(result.Orphans))))
		for _, path := range result.Orphans {
			fmt.Println(styles.DimStyle.Render("    " + path))
		}
	}

	if dryRun && len(result.Previews) > 0 {
		paths := make([]string, 0, len(result.Previews))
		for path := range result.Previews {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fmt.Println(styles.TitleStyle.Render(path))
			fmt.Println(diff.Render(result.Previews[path]))
		}
	}
}
