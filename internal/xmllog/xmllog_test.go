package xmllog_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/crankmeter/internal/results"
	"github.com/torosent/crankmeter/internal/xmllog"
)

var loadTime = time.Unix(1760000000, 0)

func fixedOptions() xmllog.Options {
	return xmllog.Options{
		Version:  "test",
		LoadTime: loadTime,
		Now:      func() time.Time { return time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC) },
	}
}

func TestOpenRotatesExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.xml")
	original := []byte("<funkload version=\"old\" time=\"then\">\n<monitor host=\"a\" time=\"1\"/>\n")
	require.NoError(t, os.WriteFile(path, original, 0o644))

	l, err := xmllog.Open(path, fixedOptions())
	require.NoError(t, err)
	require.NoError(t, l.StartLog(nil))
	require.NoError(t, l.EndLog())

	backup, err := os.ReadFile(xmllog.BackupPath(path, loadTime))
	require.NoError(t, err)
	assert.Equal(t, original, backup)

	// Same load time again: the first backup must survive too.
	l, err = xmllog.Open(path, fixedOptions())
	require.NoError(t, err)
	require.NoError(t, l.EndLog())

	again, err := os.ReadFile(xmllog.BackupPath(path, loadTime))
	require.NoError(t, err)
	assert.Equal(t, original, again)
	_, err = os.Stat(xmllog.BackupPath(path, loadTime) + ".1")
	assert.NoError(t, err)
}

func TestOpenSkipsRotationForEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.xml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	l, err := xmllog.Open(path, fixedOptions())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = os.Stat(xmllog.BackupPath(path, loadTime))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenRejectsSecondWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.xml")

	first, err := xmllog.Open(path, fixedOptions())
	require.NoError(t, err)

	_, err = xmllog.Open(path, fixedOptions())
	assert.ErrorIs(t, err, xmllog.ErrLocked)

	require.NoError(t, first.EndLog())
	second, err := xmllog.Open(path, fixedOptions())
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestWritesAfterEndFail(t *testing.T) {
	l, err := xmllog.Open(filepath.Join(t.TempDir(), "stats.xml"), fixedOptions())
	require.NoError(t, err)
	require.NoError(t, l.StartLog(nil))
	require.NoError(t, l.EndLog())

	assert.ErrorIs(t, l.Element("monitor", nil), xmllog.ErrClosed)
	assert.ErrorIs(t, l.EndLog(), xmllog.ErrClosed)
	assert.NoError(t, l.Close())
}

func TestElementBeforeStartFails(t *testing.T) {
	l, err := xmllog.Open(filepath.Join(t.TempDir(), "stats.xml"), fixedOptions())
	require.NoError(t, err)
	defer l.Close()

	assert.Error(t, l.Element("monitor", nil))
}

func TestResultsLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.xml")
	rl, err := xmllog.OpenResults(path, fixedOptions())
	require.NoError(t, err)

	require.NoError(t, rl.StartLog(nil))
	require.NoError(t, rl.Config("duration", "10", ""))
	require.NoError(t, rl.Config("url", "http://app.local", "bench"))
	require.NoError(t, rl.Record(
		map[string]string{"cycle": "0", "time": "100", "duration": "0.25", "result": "Successful"},
		nil,
		map[string]string{"Page": "GET /", "Test": "test_home"},
	))
	require.NoError(t, rl.Record(
		map[string]string{"cycle": "0", "time": "101", "duration": "3", "result": "Failure"},
		map[string]string{"traceback": "timeout <5s> & retry", "response_code": "504"},
		map[string]string{"Page": "GET /"},
	))
	require.NoError(t, rl.EndLog())

	res, err := results.ParseFile(path, results.Options{})
	require.NoError(t, err)

	assert.Equal(t, "test", res.Config["version"])
	assert.Equal(t, "2026-10-19T09:30:00.000000", res.Config["time"])
	assert.Equal(t, "http://app.local", res.Config["bench:url"])

	page, ok := res.Stats.Lookup("Page", "GET /", 0)
	require.True(t, ok)
	assert.Equal(t, 2, page.Count())
	assert.Equal(t, 1, page.Errors())
	for k := range page.ErrorDetails() {
		assert.Equal(t, "timeout <5s> & retry", k.Traceback)
		assert.Equal(t, 504, k.Code)
	}
	test, ok := res.Stats.Lookup("Test", "test_home", 0)
	require.True(t, ok)
	assert.Equal(t, 1, test.Count())
}

func TestStatsLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.xml")
	sl, err := xmllog.OpenStats(path, fixedOptions())
	require.NoError(t, err)

	require.NoError(t, sl.StartLog(nil))
	require.NoError(t, sl.Config("interval", "0.5", ""))
	require.NoError(t, sl.MonitorConfig("db", "MonitorCPU", "schema: plots.v1"))
	require.NoError(t, sl.Monitor(map[string]string{"host": "db", "time": "12.5", "CPU_TOTAL": "40"}))
	require.NoError(t, sl.Monitor(map[string]string{"host": "db", "time": "13", "CPU_TOTAL": "45", "key": "warm"}))
	require.NoError(t, sl.EndLog())

	res, err := results.ParseFile(path, results.Options{})
	require.NoError(t, err)

	assert.Equal(t, "0.5", res.Config["interval"])
	assert.Equal(t, "schema: plots.v1", res.MonitorConfig["db"]["MonitorCPU"])
	require.Len(t, res.Monitors["db"], 2)
	assert.Equal(t, 12.5, res.Monitors["db"][0].Time)
	assert.Equal(t, "warm", res.Monitors["db"][1].Key)
}

func TestCloseWithoutEndReadsAsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.xml")
	sl, err := xmllog.OpenStats(path, fixedOptions())
	require.NoError(t, err)
	require.NoError(t, sl.StartLog(nil))
	require.NoError(t, sl.Monitor(map[string]string{"host": "db", "time": "1"}))
	require.NoError(t, sl.Close())

	_, err = results.ParseFile(path, results.Options{})
	var truncated *results.TruncatedError
	assert.ErrorAs(t, err, &truncated)
}
