// Package cairn implements the transactional, KV-store-backed POSIX-like
// back end (spec.md §4.3): a single ordered key space holding super,
// inode, dirent, symlink, and extent records, with one write transaction
// per worker committed in a batch at the end of each scheduler tick.
package cairn

import "encoding/json"

// Magic is this module's file-handle discriminator byte.
const Magic byte = 0xCA

// Name is the module's config/CLI name.
const Name = "cairn"

// Config mirrors cairn's recognized JSON config keys (spec.md §6).
type Config struct {
	Path        string `json:"path"`
	Initialize  bool   `json:"initialize"`
	CacheMB     int    `json:"cache"`
	Compression *bool  `json:"compression"`
	BloomFilter *bool  `json:"bloom_filter"`
	NoAtime     bool   `json:"noatime"`
}

const defaultCacheMB = 64

// resolved applies spec.md §6's defaults (cache=64, compression=true,
// bloom_filter=true) to a Config decoded from JSON, where the boolean
// fields use a pointer so "absent" and "false" are distinguishable.
func (c Config) resolved() Config {
	if c.CacheMB <= 0 {
		c.CacheMB = defaultCacheMB
	}
	if c.Compression == nil {
		t := true
		c.Compression = &t
	}
	if c.BloomFilter == nil {
		t := true
		c.BloomFilter = &t
	}
	return c
}

func parseConfig(raw json.RawMessage) (Config, error) {
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return Config{}, err
	}
	return c.resolved(), nil
}
