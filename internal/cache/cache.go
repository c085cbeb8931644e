// Package cache generalizes the teacher's common.CacheType abstraction
// (common/cache.go: LRUCacheType / LRUShardCacheType / ARCChacheType) with a
// fourth backing -- a byte-oriented VictoriaMetrics/fastcache -- used by the
// CryptoVerifier for its "already verified" signature cache (spec.md §4.1:
// "A transaction cached as crypto-verified by the mempool need not be
// re-verified").
package cache

import (
	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pbnjay/memory"

	"github.com/corechain/node/internal/log"
)

var logger = log.NewModuleLogger(log.Common)

// Type selects the cache backing, mirroring common.CacheType.
type Type int

const (
	LRUType Type = iota
	FastType
)

// Scale mirrors common/cache.go's CacheScale knob: cache size = preset
// size * Scale / 100. DefaultScale() derives a starting point from the
// machine's available RAM instead of a hand-picked constant, the dynamic
// counterpart of the teacher's manually-set global.
var Scale = 100

// DefaultScale inspects system memory (pbnjay/memory) and returns a scale
// factor in [50, 400]: 100 at 4GiB available, growing/shrinking linearly.
func DefaultScale() int {
	avail := memory.FreeMemory()
	const baseline = 4 << 30 // 4 GiB
	if avail == 0 {
		return 100
	}
	scale := int((avail * 100) / baseline)
	if scale < 50 {
		scale = 50
	}
	if scale > 400 {
		scale = 400
	}
	return scale
}

func init() {
	Scale = DefaultScale()
	logger.Debug("cache scale derived from available memory", "scale", Scale)
}

// Scaled applies Scale to a preset size.
func Scaled(preset int) int {
	v := preset * Scale / 100
	if v < 1 {
		v = 1
	}
	return v
}

// IDCache is a small interface over "have I seen this 32-ish byte key"
// used by the fast crypto-verified cache; it intentionally does not carry
// values, matching the boolean membership test spec.md needs
// (is_crypto_verified/mark_crypto_verified).
type IDCache interface {
	Mark(key []byte)
	Has(key []byte) bool
}

type lruIDCache struct {
	c *lru.Cache
}

func (l *lruIDCache) Mark(key []byte)    { l.c.Add(string(key), struct{}{}) }
func (l *lruIDCache) Has(key []byte) bool { return l.c.Contains(string(key)) }

type fastIDCache struct {
	c *fastcache.Cache
}

func (f *fastIDCache) Mark(key []byte)    { f.c.Set(key, []byte{1}) }
func (f *fastIDCache) Has(key []byte) bool { return f.c.Has(key) }

// NewIDCache builds an IDCache with the requested backing and a
// Scale-adjusted preset capacity.
func NewIDCache(t Type, preset int) IDCache {
	size := Scaled(preset)
	switch t {
	case FastType:
		// fastcache wants a byte budget, not an entry count; estimate ~64B
		// per entry (id + bucket overhead).
		return &fastIDCache{c: fastcache.New(size * 64)}
	default:
		c, err := lru.New(size)
		if err != nil {
			logger.Crit("failed to allocate LRU cache", "err", err)
		}
		return &lruIDCache{c: c}
	}
}
