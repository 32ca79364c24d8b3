package plugins

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/torosent/crankmeter/internal/agent"
)

// MemFree reports memory and swap in kB.
type MemFree struct {
	*agent.Plots
	virtual func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	swap    func(ctx context.Context) (*mem.SwapMemoryStat, error)
}

func NewMemFree() *MemFree {
	return &MemFree{
		Plots: agent.NewPlots(agent.Plot{
			Title:  "Memory used",
			YLabel: "kB",
			Unit:   "kB",
			Lines: []agent.Line{
				{Key: "MEM_USED", Style: "lines", Title: "memory"},
				{Key: "SWAP_USED", Style: "lines", Title: "swap"},
			},
		}),
		virtual: mem.VirtualMemoryWithContext,
		swap:    mem.SwapMemoryWithContext,
	}
}

func (m *MemFree) Name() string { return "MonitorMemFree" }

func (m *MemFree) Stat(ctx context.Context) (map[string]string, error) {
	vm, err := m.virtual(ctx)
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	out := map[string]string{
		"MEM_TOTAL": formatUint(vm.Total / 1024),
		"MEM_FREE":  formatUint(vm.Available / 1024),
		"MEM_USED":  formatUint(vm.Used / 1024),
	}

	// Hosts without swap still report memory.
	if sw, err := m.swap(ctx); err == nil {
		out["SWAP_TOTAL"] = formatUint(sw.Total / 1024)
		out["SWAP_FREE"] = formatUint(sw.Free / 1024)
		out["SWAP_USED"] = formatUint(sw.Used / 1024)
	}
	return out, nil
}
