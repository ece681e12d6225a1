package csvin

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/csimplestring/go-csv/detector"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// DelimiterAuto asks the reader to detect the delimiter from the input.
const DelimiterAuto = "auto"

// detectSampleSize is how much of the input is inspected to detect the delimiter.
const detectSampleSize = 64 * 1024

// ErrNoHeader is returned for input without a header row.
var ErrNoHeader = errors.New("input has no header row")

// Options control how delimited input is read.
type Options struct {
	// Delimiter is a single character, "tab", or DelimiterAuto.
	Delimiter string
	// Encoding is an IANA or WHATWG encoding label, e.g. "utf-8" or "latin1".
	Encoding string
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Open opens the input at path for reading; "-" reads stdin. Compressed
// input is decompressed transparently.
func Open(path string) (io.ReadCloser, error) {
	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
	}

	r, err := maybeDecompress(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return &readCloser{Reader: r, Closer: f}, nil
}

// ReadRows reads all records of a delimited input. The first record is the
// header; every following record becomes a Row keyed by the trimmed header
// names. Rows keep input order.
func ReadRows(r io.Reader, opts Options) ([]Row, error) {
	decoded, err := decodeReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	bufReader := bufio.NewReaderSize(decoded, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := bufReader.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		bufReader.Discard(3)
	}

	comma, err := resolveDelimiter(bufReader, opts.Delimiter)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bufReader)
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, NewRow(line, header, record))
	}
	return rows, nil
}

// decodeReader converts input in the named encoding to UTF-8.
func decodeReader(r io.Reader, name string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return r, nil
	}

	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

// resolveDelimiter turns the configured delimiter into a rune, detecting it
// from the buffered input when asked to.
func resolveDelimiter(br *bufio.Reader, delim string) (rune, error) {
	switch strings.ToLower(delim) {
	case "":
		return ';', nil
	case "tab", `\t`:
		return '\t', nil
	case DelimiterAuto:
		sample, _ := br.Peek(detectSampleSize)
		return detectDelimiter(sample, ';'), nil
	}

	if utf8.RuneCountInString(delim) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", delim)
	}
	r, _ := utf8.DecodeRuneInString(delim)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q", delim)
	}
	return r, nil
}

// detectDelimiter returns the most likely delimiter of a CSV-like sample, or
// fallback if none stands out.
func detectDelimiter(sample []byte, fallback rune) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(bytes.NewReader(sample), '"')

	if len(delimiters) > 0 && delimiters[0] != "" {
		return rune(delimiters[0][0])
	}
	return fallback
}
