package plugins

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/net"

	"github.com/torosent/crankmeter/internal/agent"
)

// Network reports cumulative bytes received and sent.
type Network struct {
	*agent.Plots
	iface    string
	counters func(ctx context.Context, pernic bool) ([]net.IOCountersStat, error)
}

// NewNetwork watches iface, or every interface summed when iface is empty.
func NewNetwork(iface string) *Network {
	return &Network{
		Plots: agent.NewPlots(agent.Plot{
			Title:  "Network traffic",
			YLabel: "bytes",
			Unit:   "B",
			Lines: []agent.Line{
				{Key: "NET_RECV", Style: "lines", Title: "received"},
				{Key: "NET_SENT", Style: "lines", Title: "sent"},
			},
		}),
		iface:    iface,
		counters: net.IOCountersWithContext,
	}
}

func (n *Network) Name() string { return "MonitorNetwork" }

func (n *Network) Stat(ctx context.Context) (map[string]string, error) {
	stats, err := n.counters(ctx, n.iface != "")
	if err != nil {
		return nil, fmt.Errorf("read network counters: %w", err)
	}
	for _, s := range stats {
		if n.iface == "" || s.Name == n.iface {
			return map[string]string{
				"NET_RECV": formatUint(s.BytesRecv),
				"NET_SENT": formatUint(s.BytesSent),
			}, nil
		}
	}
	return nil, fmt.Errorf("network interface %q not found", n.iface)
}
