// Package plugins holds the built-in monitor plugins.
package plugins

import (
	"strconv"

	"github.com/torosent/crankmeter/internal/agent"
)

// Options tunes the built-in plugins.
type Options struct {
	// Interface limits MonitorNetwork to one NIC. Empty sums every interface.
	Interface string
	// CUsFile is where the bench writes its current concurrency level.
	CUsFile string
}

// Default returns every built-in plugin in registration order.
func Default(opts Options) []agent.Plugin {
	return []agent.Plugin{
		NewCPU(),
		NewMemFree(),
		NewNetwork(opts.Interface),
		NewLoad(),
		NewCUs(opts.CUsFile),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
