package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const SchemaVersionV1 uint32 = 1

type Manifest struct {
	SchemaVersion uint32 `json:"schema_version"`
	ParentAccount string `json:"parent_account"`
	ParentIDHex   string `json:"parent_id_hex"`

	RootHex   string `json:"root"`
	LeafCount int    `json:"leaf_count"`
	UpdatedAt uint64 `json:"updated_at"`
}

func manifestPath(treeDir string) string {
	return filepath.Join(treeDir, "MANIFEST.json")
}

func readManifest(treeDir string) (*Manifest, error) {
	b, err := os.ReadFile(manifestPath(treeDir))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("manifest json: %w", err)
	}
	return &m, nil
}

// writeManifestAtomic writes temp, fsyncs it, renames over MANIFEST.json and
// fsyncs the directory.
func writeManifestAtomic(treeDir string, m *Manifest) error {
	if m == nil {
		return fmt.Errorf("manifest: nil")
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest json: %w", err)
	}
	b = append(b, '\n')

	final := manifestPath(treeDir)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) // #nosec G304 -- derived from operator datadir.
	if err != nil {
		return fmt.Errorf("manifest open tmp: %w", err)
	}
	_, werr := f.Write(b)
	serr := f.Sync()
	cerr := f.Close()
	switch {
	case werr != nil:
		return fmt.Errorf("manifest write tmp: %w", werr)
	case serr != nil:
		return fmt.Errorf("manifest fsync tmp: %w", serr)
	case cerr != nil:
		return fmt.Errorf("manifest close tmp: %w", cerr)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("manifest rename: %w", err)
	}

	d, err := os.Open(treeDir) // #nosec G304 -- derived from operator datadir.
	if err != nil {
		return fmt.Errorf("manifest fsync dir open: %w", err)
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return fmt.Errorf("manifest fsync dir: %w", err)
	}
	return d.Close()
}
