package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/torosent/crankmeter/internal/agent"
)

// CUs reports the bench's current number of concurrent users, read from a
// file the bench rewrites at each cycle. A missing file reads as 0.
type CUs struct {
	*agent.Plots
	path string
}

func NewCUs(path string) *CUs {
	return &CUs{
		Plots: agent.NewPlots(agent.Plot{
			Title: "Concurrent users",
			Lines: []agent.Line{{Key: "CUS", Style: "steps", Title: "CUs"}},
		}),
		path: path,
	}
}

func (c *CUs) Name() string { return "MonitorCUs" }

func (c *CUs) Stat(context.Context) (map[string]string, error) {
	if c.path == "" {
		return map[string]string{"CUS": "0"}, nil
	}
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{"CUS": "0"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read concurrency level: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse concurrency level: %w", err)
	}
	return map[string]string{"CUS": strconv.Itoa(n)}, nil
}

// WriteCUs records level for CUs to pick up.
func WriteCUs(path string, level int) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(level)+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
