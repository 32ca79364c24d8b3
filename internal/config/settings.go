// Package config loads crankmeter settings from a YAML or JSON file and
// command-line flags, flags taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// section reads typed values out of one top-level block of a config file.
// The first conversion failure is kept and later reads become no-ops, so
// apply functions can read every field and check err once.
type section struct {
	values map[string]any
	err    error
}

func newSection(raw any) (*section, error) {
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return nil, err
	}
	values := make(map[string]any, len(m))
	for k, v := range m {
		values[normalizeKey(k)] = v
	}
	return &section{values: values}, nil
}

// normalizeKey folds case and treats dashes like underscores, so
// "apdex-t" and "Apdex_T" name the same setting.
func normalizeKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), "-", "_")
}

// lookup returns the first non-nil value among keys.
func (s *section) lookup(keys ...string) (any, bool) {
	if s.err != nil {
		return nil, false
	}
	for _, k := range keys {
		if v, ok := s.values[normalizeKey(k)]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (s *section) fail(key string, err error) {
	if s.err == nil && err != nil {
		s.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (s *section) str(dst *string, keys ...string) {
	if raw, ok := s.lookup(keys...); ok {
		v, err := cast.ToStringE(raw)
		s.fail(keys[0], err)
		*dst = strings.TrimSpace(v)
	}
}

func (s *section) float(dst *float64, keys ...string) {
	if raw, ok := s.lookup(keys...); ok {
		v, err := toFloat(raw)
		s.fail(keys[0], err)
		*dst = v
	}
}

func (s *section) boolean(dst *bool, keys ...string) {
	if raw, ok := s.lookup(keys...); ok {
		v, err := cast.ToBoolE(raw)
		s.fail(keys[0], err)
		*dst = v
	}
}

func (s *section) duration(dst *time.Duration, keys ...string) {
	if raw, ok := s.lookup(keys...); ok {
		v, err := toDuration(raw)
		s.fail(keys[0], err)
		*dst = v
	}
}

func (s *section) list(dst *[]string, keys ...string) {
	if raw, ok := s.lookup(keys...); ok {
		v, err := toStrings(raw)
		s.fail(keys[0], err)
		*dst = v
	}
}

func (s *section) stringMap(dst *map[string]string, keys ...string) {
	if raw, ok := s.lookup(keys...); ok {
		v, err := cast.ToStringMapStringE(raw)
		s.fail(keys[0], err)
		*dst = v
	}
}

func toFloat(raw any) (float64, error) {
	if str, ok := raw.(string); ok {
		raw = strings.TrimSpace(str)
	}
	return cast.ToFloat64E(raw)
}

// toDuration accepts Go duration strings and bare numbers of seconds.
func toDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case time.Duration:
		return v, nil
	case string:
		return time.ParseDuration(strings.TrimSpace(v))
	}
	secs, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("want a duration or seconds, got %T", raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// toStrings accepts a list or a single string. A single string stays whole,
// since thresholds contain spaces.
func toStrings(raw any) ([]string, error) {
	if str, ok := raw.(string); ok {
		return []string{str}, nil
	}
	return cast.ToStringSliceE(raw)
}
