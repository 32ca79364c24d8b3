package plugins

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/torosent/crankmeter/internal/agent"
)

// CPU reports CPU usage in percent since its previous reading (since boot on
// the first one).
type CPU struct {
	*agent.Plots
	times func(ctx context.Context) (cpu.TimesStat, error)

	mu   sync.Mutex
	prev cpu.TimesStat
}

func NewCPU() *CPU {
	return &CPU{
		Plots: agent.NewPlots(agent.Plot{
			Title:  "CPU usage",
			YLabel: "%",
			Unit:   "%",
			Lines: []agent.Line{
				{Key: "CPU_TOTAL", Style: "impulse", Title: "total"},
				{Key: "CPU_USER", Style: "lines", Title: "user"},
				{Key: "CPU_SYS", Style: "lines", Title: "system"},
				{Key: "CPU_IOWAIT", Style: "lines", Title: "iowait"},
			},
		}),
		times: totalTimes,
	}
}

func totalTimes(ctx context.Context) (cpu.TimesStat, error) {
	all, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return cpu.TimesStat{}, err
	}
	if len(all) == 0 {
		return cpu.TimesStat{}, errors.New("no cpu times reported")
	}
	return all[0], nil
}

func (c *CPU) Name() string { return "MonitorCPU" }

func (c *CPU) Stat(ctx context.Context) (map[string]string, error) {
	cur, err := c.times(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cpu times: %w", err)
	}

	c.mu.Lock()
	prev := c.prev
	c.prev = cur
	c.mu.Unlock()

	user := cur.User + cur.Nice - prev.User - prev.Nice
	sys := cur.System + cur.Irq + cur.Softirq - prev.System - prev.Irq - prev.Softirq
	idle := cur.Idle - prev.Idle
	iowait := cur.Iowait - prev.Iowait
	steal := cur.Steal - prev.Steal
	total := user + sys + idle + iowait + steal
	if total <= 0 {
		return map[string]string{
			"CPU_TOTAL": formatFloat(0), "CPU_USER": formatFloat(0), "CPU_SYS": formatFloat(0),
			"CPU_IDLE": formatFloat(100), "CPU_IOWAIT": formatFloat(0),
		}, nil
	}

	pct := func(v float64) string { return formatFloat(100 * v / total) }
	return map[string]string{
		"CPU_TOTAL":  pct(total - idle),
		"CPU_USER":   pct(user),
		"CPU_SYS":    pct(sys),
		"CPU_IDLE":   pct(idle),
		"CPU_IOWAIT": pct(iowait),
	}, nil
}
