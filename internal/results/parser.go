package results

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/torosent/crankmeter/internal/stats"
)

// Group names used by legacy result files, which carry no <aggregate> children.
const (
	LegacyTestGroup        = "Test"
	LegacyStepGroup        = "Response by step"
	LegacyDescriptionGroup = "Response by description"
	LegacyPageGroup        = "Page"
)

// ResultSuccessful is the result attribute of a sample that did not fail.
const ResultSuccessful = "Successful"

// Options configures parsing.
type Options struct {
	// ApdexT is the apdex satisfied threshold in seconds. Zero means stats.DefaultApdexT.
	ApdexT float64
	Logger *zap.Logger
}

func (o Options) normalize() Options {
	if o.ApdexT <= 0 {
		o.ApdexT = stats.DefaultApdexT
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Parse reads one result log. On error no partial result is returned.
func Parse(r io.Reader, opts Options) (*Result, error) {
	p := newParser(opts.normalize())
	if err := p.feed(r); err != nil {
		return nil, err
	}
	return p.result, nil
}

// ParseFile parses the result log at path.
func ParseFile(path string, opts Options) (*Result, error) {
	return ParseFiles([]string{path}, opts)
}

// ParseFiles parses several result logs into one Result, as produced by a bench
// distributed over several nodes. Samples land in the same tree; config
// entries from later files win.
func ParseFiles(paths []string, opts Options) (*Result, error) {
	if len(paths) == 0 {
		return nil, errors.New("no result files given")
	}
	opts = opts.normalize()
	p := newParser(opts)
	for _, path := range paths {
		if err := p.feedFile(path); err != nil {
			return nil, err
		}
	}
	return p.result, nil
}

// frame is one open element.
type frame struct {
	name       string
	attrs      map[string]string
	text       strings.Builder
	aggregates [][2]string
}

type parser struct {
	opts   Options
	result *Result
	stack  []*frame
	dec    *xml.Decoder
}

func newParser(opts Options) *parser {
	return &parser{opts: opts, result: newResult(opts.ApdexT)}
}

func (p *parser) feedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open result file: %w", err)
	}
	defer f.Close()

	if err := p.feed(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (p *parser) feed(r io.Reader) error {
	p.dec = xml.NewDecoder(r)
	p.stack = p.stack[:0]
	sawRoot := false
	records := 0

	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			if !sawRoot {
				return p.malformed(errors.New("no funkload element"), hintNotBench)
			}
			break
		}
		if err != nil {
			return p.tokenError(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(p.stack) == 0 {
				if t.Name.Local != "funkload" {
					return p.malformed(fmt.Errorf("unexpected root element <%s>", t.Name.Local), hintNotBench)
				}
				sawRoot = true
			}
			if err := p.start(t); err != nil {
				return err
			}
		case xml.EndElement:
			isRecord, err := p.end()
			if err != nil {
				return err
			}
			if isRecord {
				records++
			}
		case xml.CharData:
			if n := len(p.stack); n > 0 {
				p.stack[n-1].text.Write(t)
			}
		}
	}

	p.opts.Logger.Debug("parsed bench result",
		zap.Int("records", records),
		zap.Int("groups", len(p.result.Stats.Groups())),
		zap.Int("monitored_hosts", len(p.result.Monitors)))
	return nil
}

func (p *parser) tokenError(err error) error {
	var syntax *xml.SyntaxError
	truncated := errors.Is(err, io.ErrUnexpectedEOF) ||
		(errors.As(err, &syntax) && strings.Contains(syntax.Msg, "unexpected EOF"))
	if truncated && len(p.stack) > 0 && p.stack[0].name == "funkload" {
		line, _ := p.dec.InputPos()
		return &TruncatedError{Stack: p.stackNames(), Line: line}
	}
	hint := hintEncoding
	if len(p.stack) == 0 {
		hint = hintNotBench
	}
	return p.malformed(err, hint)
}

func (p *parser) malformed(err error, hint string) *MalformedError {
	line, _ := p.dec.InputPos()
	return &MalformedError{Stack: p.stackNames(), Line: line, Hint: hint, Err: err}
}

func (p *parser) stackNames() []string {
	names := make([]string, len(p.stack))
	for i, f := range p.stack {
		names[i] = f.name
	}
	return names
}

func (p *parser) start(el xml.StartElement) error {
	f := &frame{name: el.Name.Local, attrs: make(map[string]string, len(el.Attr))}
	for _, a := range el.Attr {
		f.attrs[a.Name.Local] = a.Value
	}
	p.stack = append(p.stack, f)

	switch f.name {
	case "funkload":
		p.result.Config["version"] = f.attrs["version"]
		p.result.Config["time"] = f.attrs["time"]
	case "config":
		key, value := f.attrs["key"], f.attrs["value"]
		p.result.Config[key] = value
		if key == "duration" {
			d, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return p.malformed(fmt.Errorf("config duration: %w", err), "")
			}
			p.result.Stats.SetDuration(d)
		}
	}
	return nil
}

// end pops the current frame and dispatches it. It reports whether the frame
// was a timed sample.
func (p *parser) end() (bool, error) {
	n := len(p.stack)
	f := p.stack[n-1]
	// Keep the frame on the stack while dispatching so errors show it.
	defer func() { p.stack = p.stack[:n-1] }()

	var parent *frame
	if n > 1 {
		parent = p.stack[n-2]
	}

	switch f.name {
	case "aggregate":
		if parent != nil {
			parent.aggregates = append(parent.aggregates, [2]string{f.attrs["name"], f.text.String()})
		}
	case "result", "traceback", "response_code", "headers", "body":
		if parent != nil {
			parent.attrs[f.name] = f.text.String()
		}
	case "monitor":
		return false, p.monitor(f)
	case "monitorconfig":
		host := f.attrs["host"]
		cfg, ok := p.result.MonitorConfig[host]
		if !ok {
			cfg = make(map[string]string)
			p.result.MonitorConfig[host] = cfg
		}
		cfg[f.attrs["key"]] = f.attrs["value"]
	case "funkload", "config":
	default:
		return p.record(f)
	}
	return false, nil
}

func (p *parser) monitor(f *frame) error {
	ts, err := floatAttr(f.attrs, "time", -1)
	if err != nil {
		return p.malformed(err, "")
	}
	sample := &MonitorSample{
		Host:    f.attrs["host"],
		Time:    ts,
		Key:     f.attrs["key"],
		Metrics: make(map[string]string, len(f.attrs)),
	}
	for k, v := range f.attrs {
		switch k {
		case "host", "time", "key":
		default:
			sample.Metrics[k] = v
		}
	}
	p.result.Monitors[sample.Host] = append(p.result.Monitors[sample.Host], sample)
	return nil
}

func (p *parser) record(f *frame) (bool, error) {
	cycle, err := intAttr(f.attrs, "cycle", -1)
	if err != nil {
		return false, p.malformed(err, "")
	}
	ts, err := floatAttr(f.attrs, "time", -1)
	if err != nil {
		return false, p.malformed(err, "")
	}
	duration, err := floatAttr(f.attrs, "duration", -1)
	if err != nil {
		return false, p.malformed(err, "")
	}

	var errKey *stats.ErrorKey
	if result := f.attrs["result"]; result != ResultSuccessful {
		code, ok := f.attrs["code"]
		if !ok {
			code = f.attrs["response_code"]
		}
		errKey = stats.NewErrorKey(result, code, f.attrs["traceback"], f.attrs["headers"], f.attrs["body"])
	}

	keys, err := p.aggregationKeys(f)
	if err != nil {
		return false, p.malformed(err, "")
	}
	if len(keys) == 0 {
		return false, nil
	}
	for _, k := range keys {
		p.result.Stats.Accumulator(k[0], k[1], cycle).AddRecord(ts, duration, errKey)
	}
	p.result.Boundaries.Add(cycle, ts, duration)
	return true, nil
}

// aggregationKeys resolves the (group, value) pairs a sample element counts towards.
func (p *parser) aggregationKeys(f *frame) ([][2]string, error) {
	switch f.name {
	case "record":
		return f.aggregates, nil
	case "testResult":
		return [][2]string{{LegacyTestGroup, f.attrs["name"]}}, nil
	case "response":
		url, ok := f.attrs["url"]
		if !ok {
			return nil, errors.New("response without url")
		}
		if !strings.HasPrefix(url, "http") {
			url = p.result.Config["server_url"] + url
		}
		a := f.attrs
		keys := [][2]string{
			{LegacyStepGroup, fmt.Sprintf("%s.%s %s %s", a["step"], a["number"], a["type"], url)},
			{LegacyDescriptionGroup, fmt.Sprintf("%s %s", a["step"], a["description"])},
		}
		switch a["type"] {
		case "get", "post", "xmlrpc":
			keys = append(keys, [2]string{LegacyPageGroup, fmt.Sprintf("%s %s", a["step"], url)})
		}
		return keys, nil
	}
	// Unknown elements count towards nothing.
	return nil, nil
}

func floatAttr(attrs map[string]string, name string, def float64) (float64, error) {
	raw, ok := attrs[name]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", name, err)
	}
	return v, nil
}

func intAttr(attrs map[string]string, name string, def int) (int, error) {
	raw, ok := attrs[name]
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("attribute %s: %w", name, err)
	}
	return v, nil
}
