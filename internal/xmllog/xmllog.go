// Package xmllog writes the append-only XML logs read back by package results.
//
// A log is opened once per run. Opening a path that already holds content
// moves the old file aside (path.bak-<load time>) so nothing is overwritten,
// and an exclusive lock on path.lock keeps a second writer out until the log
// is ended.
package xmllog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// RootElement is the document element of every log.
const RootElement = "funkload"

var (
	// ErrLocked is returned by Open when another writer holds the log.
	ErrLocked = errors.New("log is locked by another writer")
	// ErrClosed is returned when writing to a log that has been ended.
	ErrClosed = errors.New("log is closed")
)

// Options configures a log.
type Options struct {
	// Version is written as the root element's version attribute.
	Version string
	// LoadTime suffixes the name an existing log is moved to. Zero means now.
	LoadTime time.Time
	// Now stamps the root element's time attribute. Nil means time.Now.
	Now func() time.Time
}

func (o Options) normalize() Options {
	if o.Version == "" {
		o.Version = "dev"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.LoadTime.IsZero() {
		o.LoadTime = o.Now()
	}
	return o
}

// Child is a nested element written inside another one.
type Child struct {
	Name  string
	Attrs map[string]string
	Text  string
}

// Logger writes one XML log file. It is safe for concurrent use, although
// callers normally funnel writes through a single goroutine.
type Logger struct {
	mu      sync.Mutex
	path    string
	opts    Options
	file    *os.File
	enc     *xml.Encoder
	lock    *flock.Flock
	root    string
	started bool
	closed  bool
}

// Open locks path, rotates any existing content aside and truncates path.
func Open(path string, opts Options) (*Logger, error) {
	opts = opts.normalize()

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	if err := rotate(path, opts.LoadTime); err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open log: %w", err)
	}
	return &Logger{
		path: path,
		opts: opts,
		file: file,
		enc:  xml.NewEncoder(file),
		lock: lock,
	}, nil
}

// BackupPath returns the name existing content at path is moved to.
func BackupPath(path string, loadTime time.Time) string {
	return path + ".bak-" + strconv.FormatInt(loadTime.Unix(), 10)
}

func rotate(path string, loadTime time.Time) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	target := BackupPath(path, loadTime)
	for i := 1; ; i++ {
		if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
			break
		}
		target = BackupPath(path, loadTime) + "." + strconv.Itoa(i)
	}
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}
	return nil
}

// Path returns the log's file path.
func (l *Logger) Path() string { return l.path }

// StartLog writes the XML declaration and opens the root element with the
// version and time attributes plus attrs.
func (l *Logger) StartLog(attrs map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.started {
		return errors.New("log already started")
	}

	all := map[string]string{
		"version": l.opts.Version,
		"time":    l.opts.Now().Format("2006-01-02T15:04:05.000000"),
	}
	for k, v := range attrs {
		all[k] = v
	}

	decl := xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="utf-8"`)}
	if err := l.enc.EncodeToken(decl); err != nil {
		return fmt.Errorf("write declaration: %w", err)
	}
	if err := l.enc.EncodeToken(xml.CharData("\n")); err != nil {
		return err
	}
	if err := l.enc.EncodeToken(startElement(RootElement, all)); err != nil {
		return fmt.Errorf("write root: %w", err)
	}
	l.root = RootElement
	l.started = true
	return l.flush()
}

// Element writes one element on its own line, with optional children, and
// flushes it to the file.
func (l *Logger) Element(name string, attrs map[string]string, children ...Child) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if !l.started {
		return errors.New("log not started")
	}

	if err := l.enc.EncodeToken(xml.CharData("\n")); err != nil {
		return err
	}
	start := startElement(name, attrs)
	if err := l.enc.EncodeToken(start); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	for _, c := range children {
		if err := l.writeChild(c); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := l.enc.EncodeToken(start.End()); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return l.flush()
}

func (l *Logger) writeChild(c Child) error {
	if err := l.enc.EncodeToken(xml.CharData("\n")); err != nil {
		return err
	}
	start := startElement(c.Name, c.Attrs)
	if err := l.enc.EncodeToken(start); err != nil {
		return err
	}
	if c.Text != "" {
		if err := l.enc.EncodeToken(xml.CharData(c.Text)); err != nil {
			return err
		}
	}
	return l.enc.EncodeToken(start.End())
}

// EndLog closes the root element, syncs and closes the file, and releases
// the lock. Calling it again returns ErrClosed.
func (l *Logger) EndLog() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	var errs []error
	if l.started {
		errs = append(errs,
			l.enc.EncodeToken(xml.CharData("\n")),
			l.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: l.root}}),
			l.enc.EncodeToken(xml.CharData("\n")),
			l.flush(),
		)
	}
	return errors.Join(append(errs, l.release())...)
}

// Close releases the file and lock without writing the closing root tag. The
// resulting file reads back as truncated.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.release()
}

func (l *Logger) release() error {
	l.closed = true
	var errs []error
	if err := l.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync log: %w", err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close log: %w", err))
	}
	if err := l.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("unlock log: %w", err))
	}
	return errors.Join(errs...)
}

func (l *Logger) flush() error {
	if err := l.enc.Flush(); err != nil {
		return fmt.Errorf("flush log: %w", err)
	}
	return nil
}

func startElement(name string, attrs map[string]string) xml.StartElement {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	el := xml.StartElement{Name: xml.Name{Local: name}, Attr: make([]xml.Attr, 0, len(keys))}
	for _, k := range keys {
		el.Attr = append(el.Attr, xml.Attr{Name: xml.Name{Local: k}, Value: attrs[k]})
	}
	return el
}
