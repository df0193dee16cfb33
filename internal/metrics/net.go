package metrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/net"

	"perfhud/internal/profiler"
)

// Network counter names.
const (
	NetworkReceivedBytes = "Network Received Bytes Per Second"
	NetworkSentBytes     = "Network Sent Bytes Per Second"
)

// NewNetworkCollectors creates Network receive/send byte-rate counters summed over
// non-loopback interfaces.
// Params: none.
// Returns: collectors sharing one gopsutil read per frame.
func NewNetworkCollectors() []Collector {
	return newNetworkCollectors(net.IOCountersWithContext)
}

func newNetworkCollectors(readIO func(context.Context, bool) ([]net.IOCountersStat, error)) []Collector {
	source := newRateSource(func(ctx context.Context) (uint64, uint64, error) {
		stats, err := readIO(ctx, true)
		if err != nil {
			return 0, 0, fmt.Errorf("read net counters: %w", err)
		}
		var received, sent uint64
		for _, stat := range stats {
			if isLoopbackInterface(stat.Name) {
				continue
			}
			received += stat.BytesRecv
			sent += stat.BytesSent
		}
		return received, sent, nil
	})
	return source.collectors(
		profiler.Descriptor{Category: profiler.CategoryNetwork, Name: NetworkReceivedBytes, Unit: profiler.UnitBytes},
		profiler.Descriptor{Category: profiler.CategoryNetwork, Name: NetworkSentBytes, Unit: profiler.UnitBytes},
	)
}

func isLoopbackInterface(name string) bool {
	name = strings.TrimSpace(name)
	return name == "lo" || strings.HasPrefix(name, "lo0") || strings.HasPrefix(strings.ToLower(name), "loopback")
}
