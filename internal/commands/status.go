package commands

import (
	"fmt"
	"os"

	"github.com/gerunddev/wikibridge/internal/config"
	"github.com/gerunddev/wikibridge/internal/daemon"
	"github.com/gerunddev/wikibridge/internal/state"
	"github.com/gerunddev/wikibridge/internal/styles"
)

// Status prints the daemon state and a summary of the sync ledger.
func Status() {
	running, pid, startTime := daemon.IsRunning()
	if running {
		fmt.Println(styles.SuccessStyle.Render(fmt.Sprintf("● Daemon running (PID %d, since %s)",
			pid, startTime.Format("2006-01-02 15:04:05"))))
	} else {
		fmt.Println(styles.DimStyle.Render("○ Daemon not running"))
	}

	cfg, st, err := loadConfigAndState()
	if err != nil {
		fmt.Println(styles.ErrorStyle.Render("✗ " + err.Error()))
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(styles.HeaderStyle.Render("Configuration"))
	fmt.Printf("  Docs:   %s\n", cfg.DocsDir)
	fmt.Printf("  Wiki:   %s (space %s, root page %s)\n", cfg.BaseURL, cfg.SpaceKey, cfg.RootPageID)
	fmt.Printf("  State:  %s\n", config.StateFilePath())

	fmt.Println()
	fmt.Println(styles.HeaderStyle.Render(fmt.Sprintf("Tracked documents (%d)", st.Len())))
	if st.Len() == 0 {
		fmt.Println(styles.DimStyle.Render("  Nothing synced yet. Run 'wikibridge sync' to push."))
		return
	}

	docs, scanErr := scanDocuments(cfg)
	fingerprints := map[string]string{}
	present := map[string]bool{}
	if scanErr == nil {
		for _, doc := range docs {
			fingerprints[doc.Path] = doc.Fingerprint
			present[doc.Path] = true
		}
	}

	for _, path := range st.Paths() {
		rec := st.Record(path)
		if rec == nil {
			continue
		}
		marker, line := statusLine(path, rec, present, fingerprints, scanErr == nil)
		fmt.Printf("  %s %s\n", marker, line)
	}
}

// statusLine classifies one ledger record against the current local tree.
func statusLine(path string, rec *state.Record, present map[string]bool, fingerprints map[string]string, scanned bool) (string, string) {
	detail := fmt.Sprintf("%s  (page %s, v%d, synced %s)",
		path, rec.RemotePageID, rec.RemoteVersion, rec.LastSyncedAt.Format("2006-01-02 15:04"))

	if !scanned {
		return styles.DimStyle.Render("?"), detail
	}
	if !present[path] {
		return styles.ErrorStyle.Render("✗"), detail + styles.DimStyle.Render("  [orphaned]")
	}
	if fingerprints[path] != rec.LastSyncedFingerprint {
		return styles.WarningStyle.Render("~"), detail + styles.DimStyle.Render("  [modified]")
	}
	return styles.SuccessStyle.Render("✓"), detail
}
