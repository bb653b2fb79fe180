package demofs

import (
	"fmt"

	"github.com/chimera-nas/chimera/blockdev"
	blockdevfile "github.com/chimera-nas/chimera/blockdev/file"
)

const deviceWorkers = 4

// openDevice constructs the blockdev.Device for one configured device
// (spec.md §6: "io_uring" | "vfio"). "io_uring" uses the buffered
// reference device; "vfio" uses the O_DIRECT reference device where the
// platform supports it (see device_open_linux.go / device_open_other.go).
func openDevice(id uint32, cfg DeviceConfig) (blockdev.Device, error) {
	switch cfg.Type {
	case "io_uring":
		return blockdevfile.Open(blockdevfile.Config{ID: id, Path: cfg.Path, Size: cfg.Size}, deviceWorkers)
	case "vfio":
		return openODirect(id, cfg)
	default:
		return nil, fmt.Errorf("demofs: unrecognized device type %q", cfg.Type)
	}
}
