// Package agent implements the monitor agent that runs on every host under test.
//
// An Agent owns an explicit list of plugins. Each plugin reads one family of
// system counters (CPU, memory, network, load, concurrency level) and returns
// them as a flat string map. GetRecord merges every plugin's map with the
// sample time and host name; a failing plugin is logged and left out of that
// one record without affecting the others.
//
// Plugins may also carry plot configuration: a YAML document (schema
// "plots.v1") describing how report collaborators should chart the plugin's
// metrics. The agent never interprets it, it only hands it out through
// GetMonitorsConfig and restores it through Configure.
//
// Server exposes an Agent over the gRPC service defined in package monitorrpc.
package agent
