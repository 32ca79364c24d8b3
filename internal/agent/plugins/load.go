package plugins

import (
	"context"
	"fmt"

	"github.com/mackerelio/go-osstat/loadavg"

	"github.com/torosent/crankmeter/internal/agent"
)

// Load reports the 1, 5 and 15 minute load averages.
type Load struct {
	*agent.Plots
	read func() (*loadavg.Stats, error)
}

func NewLoad() *Load {
	return &Load{
		Plots: agent.NewPlots(agent.Plot{
			Title: "Load average",
			Lines: []agent.Line{
				{Key: "LOAD_1", Style: "lines", Title: "1 min"},
				{Key: "LOAD_5", Style: "lines", Title: "5 min"},
				{Key: "LOAD_15", Style: "lines", Title: "15 min"},
			},
		}),
		read: loadavg.Get,
	}
}

func (l *Load) Name() string { return "MonitorLoad" }

func (l *Load) Stat(context.Context) (map[string]string, error) {
	s, err := l.read()
	if err != nil {
		return nil, fmt.Errorf("read load average: %w", err)
	}
	return map[string]string{
		"LOAD_1":  formatFloat(s.Loadavg1),
		"LOAD_5":  formatFloat(s.Loadavg5),
		"LOAD_15": formatFloat(s.Loadavg15),
	}, nil
}
