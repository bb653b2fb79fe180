//go:build linux

package demofs

import (
	"github.com/chimera-nas/chimera/blockdev"
	"github.com/chimera-nas/chimera/blockdev/odirect"
)

func openODirect(id uint32, cfg DeviceConfig) (blockdev.Device, error) {
	return odirect.Open(odirect.Config{ID: id, Path: cfg.Path, Size: cfg.Size}, deviceWorkers)
}
