package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const timestampLayout = "2006-01-02_15-04-05"

// DefaultWriteWorkers is the number of pages written concurrently when no
// other value is configured.
const DefaultWriteWorkers = 4

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWrap writes the pages into a timestamped subdirectory of the output
// directory.
func WithWrap(wrap bool) WriterOption {
	return func(w *Writer) { w.wrap = wrap }
}

// WithWorkers bounds the number of pages written concurrently.
func WithWorkers(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.workers = n
		}
	}
}

// WithClock replaces the time source used for file name timestamps.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) WriterOption {
	return func(w *Writer) { w.logger = logger.With().Str("component", "fhir-writer").Logger() }
}

// Writer writes bundles as page files named
// <timestamp>_<kind>_p<page>.json into an output directory.
type Writer struct {
	dir     string
	wrap    bool
	workers int
	now     func() time.Time
	logger  zerolog.Logger
}

// NewWriter creates a Writer for dir.
func NewWriter(dir string, opts ...WriterOption) *Writer {
	w := &Writer{
		dir:     dir,
		workers: DefaultWriteWorkers,
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write writes one file per bundle and returns the directory written to and
// the file paths in page order. All pages of one call share a timestamp.
// Page numbers start at 0 and are zero-padded to the digit count of the
// number of pages.
func (w *Writer) Write(ctx context.Context, bundles []*Bundle, kind string) (string, []string, error) {
	ts := w.now().Format(timestampLayout)

	outdir := w.dir
	if w.wrap {
		outdir = filepath.Join(w.dir, ts)
	}
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create output directory: %w", err)
	}

	width := len(strconv.Itoa(len(bundles)))
	paths := make([]string, len(bundles))
	for i := range bundles {
		name := fmt.Sprintf("%s_%s_p%0*d.json", ts, kind, width, i)
		paths[i] = filepath.Join(outdir, name)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for i, b := range bundles {
		i, b := i, b
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return writeFile(paths[i], b)
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	w.logger.Info().
		Str("dir", outdir).
		Str("kind", kind).
		Int("pages", len(paths)).
		Msg("bundles written")
	return outdir, paths, nil
}

func writeFile(path string, b *Bundle) error {
	data, err := Encode(b)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Encode renders v as 4-space indented JSON without HTML escaping.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo writes v to out in the page file format.
func EncodeTo(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}
