package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// TreeDir returns the on-disk directory of one parent account's tree:
//
//	datadir/trees/<parent_account_id_hex>/
func TreeDir(datadir string, parentIDHex string) string {
	return filepath.Join(datadir, "trees", parentIDHex)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}
