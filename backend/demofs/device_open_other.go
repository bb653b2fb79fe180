//go:build !linux

package demofs

import (
	"github.com/chimera-nas/chimera/blockdev"
	"github.com/chimera-nas/chimera/vfs"
)

// openODirect has no portable equivalent of O_DIRECT outside linux; the
// "vfio" device type is unavailable on other platforms.
func openODirect(id uint32, cfg DeviceConfig) (blockdev.Device, error) {
	return nil, vfs.NewError(vfs.ErrNotsup, nil)
}
