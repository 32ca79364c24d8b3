package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Plugin reads one family of host metrics.
type Plugin interface {
	// Name is stable across releases; it keys plot configuration and selection lists.
	Name() string
	// Stat returns a point-in-time reading.
	Stat(ctx context.Context) (map[string]string, error)
}

// Configurable is implemented by plugins that carry plot configuration.
type Configurable interface {
	Config() ([]byte, error)
	SetConfig(data []byte) error
}

// PlotSchema versions the plot configuration document.
const PlotSchema = "plots.v1"

// Line is one metric drawn on a plot.
type Line struct {
	Key   string `yaml:"key"`
	Style string `yaml:"style,omitempty"`
	Title string `yaml:"title,omitempty"`
}

// Plot is one chart of a plugin's metrics.
type Plot struct {
	Title  string `yaml:"title"`
	YLabel string `yaml:"ylabel,omitempty"`
	Unit   string `yaml:"unit,omitempty"`
	Lines  []Line `yaml:"lines"`
}

type plotDocument struct {
	Schema string `yaml:"schema"`
	Plots  []Plot `yaml:"plots"`
}

// ErrUnknownSchema is returned when decoding a plot document of another schema.
var ErrUnknownSchema = errors.New("unknown plot schema")

// MarshalPlots encodes plots as a versioned YAML document.
func MarshalPlots(plots []Plot) ([]byte, error) {
	return yaml.Marshal(plotDocument{Schema: PlotSchema, Plots: plots})
}

// UnmarshalPlots decodes a document written by MarshalPlots.
func UnmarshalPlots(data []byte) ([]Plot, error) {
	var doc plotDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode plots: %w", err)
	}
	if doc.Schema != PlotSchema {
		return nil, fmt.Errorf("%w %q", ErrUnknownSchema, doc.Schema)
	}
	return doc.Plots, nil
}

// Plots is embedded by plugins to implement Configurable.
type Plots struct {
	mu    sync.Mutex
	plots []Plot
}

// NewPlots returns Plots holding defaults.
func NewPlots(defaults ...Plot) *Plots {
	return &Plots{plots: defaults}
}

// Config encodes the current plots, or returns nil when there are none.
func (p *Plots) Config() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.plots) == 0 {
		return nil, nil
	}
	return MarshalPlots(p.plots)
}

// SetConfig replaces the plots with a decoded document.
func (p *Plots) SetConfig(data []byte) error {
	plots, err := UnmarshalPlots(data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.plots = plots
	p.mu.Unlock()
	return nil
}

// Current returns a copy of the plots.
func (p *Plots) Current() []Plot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.plots)
}

// ErrConflictingSelection is returned when both an enable and a disable list are given.
var ErrConflictingSelection = errors.New("monitors_enabled and monitors_disabled are mutually exclusive")

// Selection chooses which plugins run. An empty selection keeps every plugin.
type Selection struct {
	Enabled  []string
	Disabled []string
}

// Validate rejects selections naming both lists.
func (s Selection) Validate() error {
	if len(s.Enabled) > 0 && len(s.Disabled) > 0 {
		return ErrConflictingSelection
	}
	return nil
}

// Apply filters plugins, keeping their order, and returns the names in the
// selection that match no plugin.
func (s Selection) Apply(all []Plugin) (kept []Plugin, unknown []string, err error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	known := make(map[string]bool, len(all))
	for _, p := range all {
		known[p.Name()] = true
	}
	for _, name := range append(slices.Clone(s.Enabled), s.Disabled...) {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}

	for _, p := range all {
		switch {
		case len(s.Enabled) > 0:
			if slices.Contains(s.Enabled, p.Name()) {
				kept = append(kept, p)
			}
		case len(s.Disabled) > 0:
			if !slices.Contains(s.Disabled, p.Name()) {
				kept = append(kept, p)
			}
		default:
			kept = append(kept, p)
		}
	}
	return kept, unknown, nil
}
