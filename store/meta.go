package store

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"das.dev/verifier/smt"
)

// LeafMeta is off-chain bookkeeping kept next to each leaf. It never takes
// part in hashing.
type LeafMeta struct {
	Account   string `cbor:"1,keyasint"`
	Action    string `cbor:"2,keyasint"`
	Nonce     uint64 `cbor:"3,keyasint"`
	ExpiredAt uint64 `cbor:"4,keyasint"`
	UpdatedAt uint64 `cbor:"5,keyasint"`
}

func encodeLeafMeta(m LeafMeta) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := cbor.NewEncoder(buf).Encode(m); err != nil {
		return nil, fmt.Errorf("leaf meta cbor: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeLeafMeta(b []byte) (LeafMeta, error) {
	var m LeafMeta
	if err := cbor.NewDecoder(bytes.NewReader(b)).Decode(&m); err != nil {
		return m, fmt.Errorf("leaf meta cbor: %w", err)
	}
	return m, nil
}

func (d *DB) PutLeafMeta(key smt.H256, m LeafMeta) error {
	val, err := encodeLeafMeta(m)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(key[:], val)
	})
}

func (d *DB) GetLeafMeta(key smt.H256) (LeafMeta, bool, error) {
	var out LeafMeta
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(key[:])
		if v == nil {
			return nil
		}
		m, err := decodeLeafMeta(v)
		if err != nil {
			return err
		}
		out, ok = m, true
		return nil
	})
	return out, ok, err
}

// ForEachLeaf visits leaves in key order with their metadata, if any.
func (d *DB) ForEachLeaf(fn func(key, value smt.H256, meta *LeafMeta) error) error {
	return d.db.View(func(tx *bolt.Tx) error {
		metas := tx.Bucket(bucketMeta)
		return tx.Bucket(bucketLeaves).ForEach(func(k, v []byte) error {
			var key, value smt.H256
			copy(key[:], k)
			copy(value[:], v)
			var mp *LeafMeta
			if raw := metas.Get(k); raw != nil {
				m, err := decodeLeafMeta(raw)
				if err != nil {
					return err
				}
				mp = &m
			}
			return fn(key, value, mp)
		})
	})
}
