package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gerunddev/wikibridge/internal/config"
	"github.com/gerunddev/wikibridge/internal/document"
	"github.com/gerunddev/wikibridge/internal/state"
	"github.com/gerunddev/wikibridge/internal/wiki"
)

// loadConfigAndState loads the configuration and sync ledger, migrating the
// legacy ledger location first if one exists.
func loadConfigAndState() (*config.Config, *state.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	statePath := config.StateFilePath()
	if legacy := config.LegacyStateFilePath(); legacy != "" {
		if migrated, err := state.MigrateLegacy(legacy, statePath); err != nil {
			return nil, nil, fmt.Errorf("migrating legacy state: %w", err)
		} else if migrated {
			fmt.Fprintf(os.Stderr, "Migrated sync state from %s to %s\n", legacy, statePath)
		}
	}

	st, err := state.Load(statePath)
	if err != nil {
		if errors.Is(err, state.ErrCorrupt) {
			return nil, nil, fmt.Errorf("sync state at %s is corrupt; repair or remove it and re-sync: %w", statePath, err)
		}
		return nil, nil, fmt.Errorf("loading state: %w", err)
	}

	return cfg, st, nil
}

// buildRemote wires the REST client with credentials from the environment and
// wraps it so reads retry with backoff. Writes go through unretried.
func buildRemote(cfg *config.Config) (wiki.Remote, *wiki.Client) {
	client := wiki.NewClient(cfg.BaseURL, cfg.SpaceKey,
		os.Getenv("WIKIBRIDGE_USERNAME"), os.Getenv("WIKIBRIDGE_API_TOKEN"))
	return wiki.NewReadRetrier(client, 3, 15*time.Second), client
}

// scanDocuments walks the configured docs tree.
func scanDocuments(cfg *config.Config) ([]*document.Document, error) {
	scanner := &document.Scanner{
		Root:             cfg.DocsDir,
		ExcludePatterns:  cfg.ExcludePatterns,
		DiagramLanguages: cfg.DiagramLanguages,
	}
	return scanner.Scan()
}
