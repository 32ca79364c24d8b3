package xmllog

import (
	"sort"
	"strings"
)

func configAttrs(key, value, ns string) map[string]string {
	if ns != "" {
		key = strings.Join([]string{ns, key}, ":")
	}
	return map[string]string{"key": key, "value": value}
}

// ResultsLogger writes bench result logs: config entries and one <record> per
// timed sample.
type ResultsLogger struct {
	*Logger
}

// OpenResults opens a result log at path.
func OpenResults(path string, opts Options) (*ResultsLogger, error) {
	l, err := Open(path, opts)
	if err != nil {
		return nil, err
	}
	return &ResultsLogger{Logger: l}, nil
}

// Config writes a run configuration entry. A non-empty ns prefixes the key as "ns:key".
func (r *ResultsLogger) Config(key, value, ns string) error {
	return r.Element("config", configAttrs(key, value, ns))
}

// Record writes one sample. Subitems become child elements holding text (for
// example result, traceback or body); every aggregate becomes an
// <aggregate name=".."> child the sample counts towards.
func (r *ResultsLogger) Record(attrs, subitems, aggregates map[string]string) error {
	children := make([]Child, 0, len(subitems)+len(aggregates))
	for _, k := range sortedKeys(subitems) {
		children = append(children, Child{Name: k, Text: subitems[k]})
	}
	for _, k := range sortedKeys(aggregates) {
		children = append(children, Child{
			Name:  "aggregate",
			Attrs: map[string]string{"name": k},
			Text:  aggregates[k],
		})
	}
	return r.Element("record", attrs, children...)
}

// StatsLogger writes monitor logs: config entries, per-host monitor
// configuration, and one <monitor> per poll.
type StatsLogger struct {
	*Logger
}

// OpenStats opens a monitor log at path.
func OpenStats(path string, opts Options) (*StatsLogger, error) {
	l, err := Open(path, opts)
	if err != nil {
		return nil, err
	}
	return &StatsLogger{Logger: l}, nil
}

func (s *StatsLogger) Config(key, value, ns string) error {
	return s.Element("config", configAttrs(key, value, ns))
}

func (s *StatsLogger) MonitorConfig(host, key, value string) error {
	return s.Element("monitorconfig", map[string]string{"host": host, "key": key, "value": value})
}

// Monitor writes one sample; data must include host and time.
func (s *StatsLogger) Monitor(data map[string]string) error {
	return s.Element("monitor", data)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
