// Package demofs implements the in-memory-metadata, block-device-backed
// extent back end (spec.md §4.4): inode/directory/extent state lives only
// in process memory, file data lives on raw block devices, and metadata
// does not survive a restart (spec.md §6 "Persistence").
package demofs

import "encoding/json"

// Magic is this module's file-handle discriminator byte.
const Magic byte = 0xDE

// Name is the module's config/CLI name.
const Name = "demofs"

// DeviceConfig describes one configured block device (spec.md §6).
type DeviceConfig struct {
	Type string `json:"type"` // "io_uring" or "vfio"
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Config mirrors demofs's recognized JSON config keys (spec.md §6).
type Config struct {
	Devices []DeviceConfig `json:"devices"`
}

func parseConfig(raw json.RawMessage) (Config, error) {
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
