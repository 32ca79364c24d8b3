// Package results turns a bench result log into a statistics tree.
//
// A result log is an XML document rooted at <funkload>. It carries run
// configuration (<config key value/>), one element per timed sample and, for
// monitored runs, the host samples written by the monitor collector
// (<monitor/> and <monitorconfig/>). Two sample shapes are understood:
//
//	<record time=".." duration=".." result="Successful" cycle="0">
//	  <aggregate name="Page">GET /index</aggregate>
//	</record>
//
// and the legacy <testResult/> and <response/> elements, which aggregate under
// fixed group names (see LegacyTestGroup and friends).
//
// Parsing is a single streaming pass over encoding/xml tokens with an explicit
// element stack. Every (group, value, cycle) triple gets its own
// stats.Accumulator; the Tree derives aggregators across cycles and values on
// demand.
package results
