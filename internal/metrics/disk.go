package metrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"

	"perfhud/internal/profiler"
)

// Disk counter names.
const (
	DiskReadBytes  = "Disk Read Bytes Per Second"
	DiskWriteBytes = "Disk Write Bytes Per Second"
)

// NewDiskCollectors creates FileIo read/write byte-rate counters summed over base block devices.
// Params: none.
// Returns: collectors sharing one gopsutil read per frame.
func NewDiskCollectors() []Collector {
	return newDiskCollectors(disk.IOCountersWithContext)
}

func newDiskCollectors(readIO func(context.Context, ...string) (map[string]disk.IOCountersStat, error)) []Collector {
	source := newRateSource(func(ctx context.Context) (uint64, uint64, error) {
		stats, err := readIO(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("read disk counters: %w", err)
		}
		var read, written uint64
		for name, stat := range stats {
			if !isBaseDiskDevice(name) {
				continue
			}
			read += stat.ReadBytes
			written += stat.WriteBytes
		}
		return read, written, nil
	})
	return source.collectors(
		profiler.Descriptor{Category: profiler.CategoryFileIo, Name: DiskReadBytes, Unit: profiler.UnitBytes},
		profiler.Descriptor{Category: profiler.CategoryFileIo, Name: DiskWriteBytes, Unit: profiler.UnitBytes},
	)
}

// isBaseDiskDevice returns true for top-level block devices and false for partitions.
// Params: device name from gopsutil, with or without `/dev/` prefix.
// Returns: true when device should be reported by DISK metric.
func isBaseDiskDevice(name string) bool {
	device := normalizeDeviceName(name)
	if device == "" {
		return false
	}

	if matched, base := matchLetterDisk(device, "sd"); matched {
		return base
	}
	if matched, base := matchLetterDisk(device, "vd"); matched {
		return base
	}
	if matched, base := matchLetterDisk(device, "xvd"); matched {
		return base
	}
	if matched, base := matchLetterDisk(device, "hd"); matched {
		return base
	}
	if matched, base := matchNVMeDisk(device); matched {
		return base
	}
	if matched, base := matchMMCBLKDisk(device); matched {
		return base
	}

	if strings.HasPrefix(device, "loop") && isDigits(device[len("loop"):]) {
		return false
	}
	if strings.HasPrefix(device, "ram") && isDigits(device[len("ram"):]) {
		return false
	}

	if strings.HasPrefix(device, "dm-") && isDigits(device[len("dm-"):]) {
		return true
	}
	if strings.HasPrefix(device, "md") && isDigits(device[len("md"):]) {
		return true
	}
	if strings.HasPrefix(device, "zd") && isDigits(device[len("zd"):]) {
		return true
	}

	// Keep unknown names to avoid dropping valid devices on non-standard kernels.
	return true
}

// normalizeDeviceName trims spaces and optional /dev/ prefix.
// Params: raw device name.
// Returns: normalized short device name.
func normalizeDeviceName(name string) string {
	device := strings.TrimSpace(name)
	if strings.HasPrefix(device, "/dev/") {
		device = strings.TrimPrefix(device, "/dev/")
	}
	return device
}

// matchLetterDisk matches sd/vd/xvd/hd style devices with optional numeric partition suffix.
// Params: normalized device name, family prefix.
// Returns: matched family flag and base-disk decision.
func matchLetterDisk(device, prefix string) (bool, bool) {
	if !strings.HasPrefix(device, prefix) {
		return false, false
	}

	rest := device[len(prefix):]
	if rest == "" {
		return false, false
	}

	letters := 0
	for letters < len(rest) {
		ch := rest[letters]
		if ch < 'a' || ch > 'z' {
			break
		}
		letters++
	}
	if letters == 0 {
		return false, false
	}
	if letters == len(rest) {
		return true, true
	}
	if isDigits(rest[letters:]) {
		return true, false
	}
	return true, true
}

// matchNVMeDisk matches nvmeNnM and nvmeNnMpP names.
// Params: normalized device name.
// Returns: matched family flag and base-disk decision.
func matchNVMeDisk(device string) (bool, bool) {
	if !strings.HasPrefix(device, "nvme") {
		return false, false
	}

	rest := device[len("nvme"):]
	n := consumeDigits(rest)
	if n == 0 {
		return false, false
	}
	rest = rest[n:]
	if !strings.HasPrefix(rest, "n") {
		return false, false
	}
	rest = rest[1:]
	n = consumeDigits(rest)
	if n == 0 {
		return false, false
	}
	rest = rest[n:]
	if rest == "" {
		return true, true
	}
	if strings.HasPrefix(rest, "p") && isDigits(rest[1:]) {
		return true, false
	}
	return true, true
}

// matchMMCBLKDisk matches mmcblkN and mmcblkNpP names.
// Params: normalized device name.
// Returns: matched family flag and base-disk decision.
func matchMMCBLKDisk(device string) (bool, bool) {
	if !strings.HasPrefix(device, "mmcblk") {
		return false, false
	}

	rest := device[len("mmcblk"):]
	n := consumeDigits(rest)
	if n == 0 {
		return false, false
	}
	rest = rest[n:]
	if rest == "" {
		return true, true
	}
	if strings.HasPrefix(rest, "p") && isDigits(rest[1:]) {
		return true, false
	}
	return true, true
}

// consumeDigits returns the leading decimal digit run length.
// Params: source string.
// Returns: leading digits count.
func consumeDigits(value string) int {
	index := 0
	for index < len(value) {
		ch := value[index]
		if ch < '0' || ch > '9' {
			break
		}
		index++
	}
	return index
}

// isDigits checks that value is a non-empty decimal number.
// Params: string to validate.
// Returns: true if value contains only digits and is not empty.
func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for idx := 0; idx < len(value); idx++ {
		ch := value[idx]
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
