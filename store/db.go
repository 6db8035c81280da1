package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"das.dev/verifier/smt"
)

var (
	bucketBranches = []byte("branch_by_hash")
	bucketLeaves   = []byte("leaf_by_key")
	bucketMeta     = []byte("leaf_meta_by_key")
	bucketState    = []byte("state")

	keyRoot = []byte("root")
)

// DB is a bbolt-backed smt.NodeStore holding the sub-account tree of one
// parent account.
type DB struct {
	treeDir  string
	db       *bolt.DB
	manifest *Manifest
}

func Open(datadir string, parentIDHex string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}
	if len(parentIDHex) != 40 {
		return nil, fmt.Errorf("parent_id_hex must be 40 hex chars, got %d", len(parentIDHex))
	}

	treeDir := TreeDir(datadir, parentIDHex)
	if err := ensureDir(filepath.Join(treeDir, "db")); err != nil {
		return nil, err
	}

	path := filepath.Join(treeDir, "db", "kv.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	d := &DB{treeDir: treeDir, db: bdb}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBranches, bucketLeaves, bucketMeta, bucketState} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(treeDir)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil // fresh tree, empty root.
		}
		_ = bdb.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if m.SchemaVersion > SchemaVersionV1 {
		_ = bdb.Close()
		return nil, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	}
	d.manifest = m
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) TreeDir() string { return d.treeDir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

func (d *DB) SetManifest(m *Manifest) error {
	if d == nil {
		return fmt.Errorf("db: nil")
	}
	if err := writeManifestAtomic(d.treeDir, m); err != nil {
		return err
	}
	d.manifest = m
	return nil
}

func (d *DB) GetBranch(hash smt.H256) (smt.H256, smt.H256, bool, error) {
	var l, r smt.H256
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		var err error
		l, r, ok, err = txStore{tx}.GetBranch(hash)
		return err
	})
	return l, r, ok, err
}

func (d *DB) PutBranch(hash, left, right smt.H256) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return txStore{tx}.PutBranch(hash, left, right)
	})
}

func (d *DB) GetLeaf(key smt.H256) (smt.H256, error) {
	var v smt.H256
	err := d.db.View(func(tx *bolt.Tx) error {
		var err error
		v, err = txStore{tx}.GetLeaf(key)
		return err
	})
	return v, err
}

func (d *DB) PutLeaf(key, value smt.H256) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return txStore{tx}.PutLeaf(key, value)
	})
}

func (d *DB) Root() (smt.H256, error) {
	var root smt.H256
	err := d.db.View(func(tx *bolt.Tx) error {
		var err error
		root, err = txStore{tx}.Root()
		return err
	})
	return root, err
}

func (d *DB) SetRoot(root smt.H256) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return txStore{tx}.SetRoot(root)
	})
}

// Batch runs fn against a store bound to one read-write transaction.
func (d *DB) Batch(fn func(smt.NodeStore) error) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return fn(txStore{tx})
	})
}

// LeafCount returns the number of non-zero leaves.
func (d *DB) LeafCount() (int, error) {
	n := 0
	err := d.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketLeaves).Stats().KeyN
		return nil
	})
	return n, err
}

type txStore struct {
	tx *bolt.Tx
}

func (s txStore) GetBranch(hash smt.H256) (smt.H256, smt.H256, bool, error) {
	var l, r smt.H256
	v := s.tx.Bucket(bucketBranches).Get(hash[:])
	if v == nil {
		return l, r, false, nil
	}
	if len(v) != 64 {
		return l, r, false, fmt.Errorf("branch %x: bad length %d", hash[:], len(v))
	}
	copy(l[:], v[:32])
	copy(r[:], v[32:])
	return l, r, true, nil
}

func (s txStore) PutBranch(hash, left, right smt.H256) error {
	val := make([]byte, 64)
	copy(val[:32], left[:])
	copy(val[32:], right[:])
	return s.tx.Bucket(bucketBranches).Put(hash[:], val)
}

func (s txStore) GetLeaf(key smt.H256) (smt.H256, error) {
	var out smt.H256
	v := s.tx.Bucket(bucketLeaves).Get(key[:])
	if v == nil {
		return out, nil
	}
	if len(v) != 32 {
		return out, fmt.Errorf("leaf %x: bad length %d", key[:], len(v))
	}
	copy(out[:], v)
	return out, nil
}

func (s txStore) PutLeaf(key, value smt.H256) error {
	if value == smt.Zero {
		return s.tx.Bucket(bucketLeaves).Delete(key[:])
	}
	return s.tx.Bucket(bucketLeaves).Put(key[:], append([]byte(nil), value[:]...))
}

func (s txStore) Root() (smt.H256, error) {
	var root smt.H256
	v := s.tx.Bucket(bucketState).Get(keyRoot)
	if v == nil {
		return root, nil
	}
	if len(v) != 32 {
		return root, fmt.Errorf("root: bad length %d", len(v))
	}
	copy(root[:], v)
	return root, nil
}

func (s txStore) SetRoot(root smt.H256) error {
	return s.tx.Bucket(bucketState).Put(keyRoot, append([]byte(nil), root[:]...))
}
