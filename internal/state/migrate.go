package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// MigrateLegacy moves the ledger from a legacy location to the current one.
// This runs once, before the store initializes, and is a no-op when there is
// nothing to migrate or the current ledger already exists. The legacy file is
// kept as a .bak backup.
func MigrateLegacy(legacyPath, currentPath string) (bool, error) {
	if legacyPath == "" || legacyPath == currentPath {
		return false, nil
	}

	if _, err := os.Stat(currentPath); err == nil {
		return false, nil
	}

	data, err := os.ReadFile(legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read legacy state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(currentPath), 0755); err != nil {
		return false, fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(currentPath, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write migrated state: %w", err)
	}

	if err := os.Rename(legacyPath, legacyPath+".bak"); err != nil {
		return false, fmt.Errorf("failed to back up legacy state: %w", err)
	}
	return true, nil
}
