package sign

import (
	"encoding/binary"

	"github.com/bluele/gcache"

	"das.dev/verifier/core"
)

const defaultCacheSize = 4096

// Cached remembers successful verifications so the same authorization is
// not recovered twice. Failures are never cached.
type Cached struct {
	next  Oracle
	cache gcache.Cache
}

func NewCached(next Oracle, size int) *Cached {
	if size <= 0 {
		size = defaultCacheSize
	}
	return &Cached{next: next, cache: gcache.New(size).ARC().Build()}
}

// cacheKey length-prefixes signature and args so no two splits of the same
// bytes share a key.
func cacheKey(lockType core.DasLockType, digest [32]byte, signature, args []byte) [32]byte {
	lens := binary.LittleEndian.AppendUint32([]byte{byte(lockType)}, uint32(len(signature)))
	lens = binary.LittleEndian.AppendUint32(lens, uint32(len(args)))
	return core.Blake2b256Concat(lens, digest[:], signature, args)
}

func (c *Cached) Verify(lockType core.DasLockType, digest [32]byte, signature, args []byte) error {
	key := cacheKey(lockType, digest, signature, args)
	if _, err := c.cache.Get(key); err == nil {
		return nil
	}
	if err := c.next.Verify(lockType, digest, signature, args); err != nil {
		return err
	}
	return c.cache.Set(key, struct{}{})
}
